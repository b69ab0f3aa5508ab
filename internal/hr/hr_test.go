package hr

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/WizBoom/Apate/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func newWorkflow(t *testing.T) (*Workflow, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	return New(db, zap.NewNop()), db
}

func seedCorporation(t *testing.T, db *gorm.DB, id int64, name string, recruiting bool) *model.Corporation {
	t.Helper()

	corporation := &model.Corporation{ID: id, Name: name, Ticker: "TEST", RecruitmentOpen: recruiting}
	require.NoError(t, db.Create(corporation).Error)
	return corporation
}

// seedApplicant creates a character with a complete profile: a delegated
// token pair and a linked Discord identity
func seedApplicant(t *testing.T, db *gorm.DB, id int64, name string, corpID int64) *model.Character {
	t.Helper()

	discord := name + "#0001"
	character := &model.Character{
		ID:            id,
		Name:          name,
		CorporationID: corpID,
		MainID:        id,
		AccessToken:   "access-" + name,
		RefreshToken:  "refresh-" + name,
		DiscordID:     &discord,
	}
	require.NoError(t, db.Create(character).Error)
	return character
}

func recruiter(id int64, corp model.Corporation) *model.Character {
	return &model.Character{
		ID:            id,
		Name:          "Recruiter",
		CorporationID: corp.ID,
		MainID:        id,
		Corporation:   corp,
		Roles: []model.Role{{
			Name:        "Recruiter",
			Permissions: []model.Permission{{Name: model.PermissionReadApplications}},
		}},
	}
}

func TestApplyGating(t *testing.T) {
	workflow, db := newWorkflow(t)
	home := seedCorporation(t, db, 2001, "Wormbro", false)
	closed := seedCorporation(t, db, 2002, "Closed Doors", false)
	open := seedCorporation(t, db, 2003, "Open Arms", true)
	applicant := seedApplicant(t, db, 1001, "Alex", home.ID)

	_, err := workflow.Apply(applicant, 424242)
	assert.ErrorIs(t, err, ErrCorporationNotFound)

	// Membership is checked before recruitment state: applying to your own
	// closed corporation reads as "already a member"
	_, err = workflow.Apply(applicant, home.ID)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	_, err = workflow.Apply(applicant, closed.ID)
	assert.ErrorIs(t, err, ErrRecruitmentClosed)

	application, err := workflow.Apply(applicant, open.ID)
	require.NoError(t, err)
	require.NotNil(t, application)
	assert.Equal(t, applicant.ID, application.CharacterID)
	assert.Equal(t, open.ID, application.CorporationID)
	assert.False(t, application.ReadyAccepted)

	// One pending application at a time, whatever the target
	_, err = workflow.Apply(applicant, open.ID)
	assert.ErrorIs(t, err, ErrPendingApplication)
}

func TestApplyMissingPrerequisites(t *testing.T) {
	workflow, db := newWorkflow(t)
	seedCorporation(t, db, 2001, "Wormbro", false)
	open := seedCorporation(t, db, 2003, "Open Arms", true)

	noTokens := &model.Character{ID: 1001, Name: "NoTokens", CorporationID: 2001, MainID: 1001}
	discord := "NoTokens#0001"
	noTokens.DiscordID = &discord
	require.NoError(t, db.Create(noTokens).Error)

	_, err := workflow.Apply(noTokens, open.ID)
	assert.ErrorIs(t, err, ErrMissingPrerequisites)

	noDiscord := &model.Character{
		ID: 1002, Name: "NoDiscord", CorporationID: 2001, MainID: 1002,
		AccessToken: "at", RefreshToken: "rt",
	}
	require.NoError(t, db.Create(noDiscord).Error)

	_, err = workflow.Apply(noDiscord, open.ID)
	assert.ErrorIs(t, err, ErrMissingPrerequisites)

	var count int64
	require.NoError(t, db.Model(&model.Application{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestCanView(t *testing.T) {
	workflow, db := newWorkflow(t)
	home := seedCorporation(t, db, 2001, "Wormbro", false)
	target := seedCorporation(t, db, 2003, "Open Arms", true)
	other := seedCorporation(t, db, 2004, "Bystanders", true)
	applicant := seedApplicant(t, db, 1001, "Alex", home.ID)

	application, err := workflow.Apply(applicant, target.ID)
	require.NoError(t, err)

	assert.True(t, workflow.CanView(applicant, application), "applicants always see their own application")

	assert.True(t, workflow.CanView(recruiter(1002, *target), application))
	assert.False(t, workflow.CanView(recruiter(1003, *other), application), "recruiters only see applications to their own corporation")

	bystander := &model.Character{ID: 1004, Name: "Bystander", CorporationID: target.ID, MainID: 1004, Corporation: *target}
	assert.False(t, workflow.CanView(bystander, application), "membership without the permission grants nothing")

	// An admin browsing the target corporation through the override reviews
	// its applications like a local recruiter would
	overrideID := target.ID
	admin := &model.Character{
		ID:            1005,
		Name:          "Admin",
		CorporationID: other.ID,
		MainID:        1005,
		Corporation:   *other,
		AdminCorpID:   &overrideID,
		AdminCorp:     target,
		Roles: []model.Role{{
			Name: model.RoleAdmin,
			Permissions: []model.Permission{
				{Name: model.PermissionAdmin},
				{Name: model.PermissionReadApplications},
			},
		}},
	}
	assert.True(t, workflow.CanView(admin, application))
}

func TestRemove(t *testing.T) {
	workflow, db := newWorkflow(t)
	home := seedCorporation(t, db, 2001, "Wormbro", false)
	target := seedCorporation(t, db, 2003, "Open Arms", true)
	applicant := seedApplicant(t, db, 1001, "Alex", home.ID)
	require.NoError(t, db.Model(applicant).Update("notes", "Prior note").Error)

	created, err := workflow.Apply(applicant, target.ID)
	require.NoError(t, err)

	application, err := workflow.ApplicationByID(created.ID)
	require.NoError(t, err)
	require.NotNil(t, application)

	reviewer := recruiter(1002, *target)

	assert.ErrorIs(t, workflow.Remove(reviewer, application, "  "), ErrReasonRequired)

	outsider := recruiter(1003, *home)
	assert.ErrorIs(t, workflow.Remove(outsider, application, "not for you"), ErrNotAllowed)

	require.NoError(t, workflow.Remove(reviewer, application, "No answer in interview"))

	gone, err := workflow.ApplicationByID(created.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	var character model.Character
	require.NoError(t, db.First(&character, applicant.ID).Error)
	assert.Equal(t, "Prior note\nApplication to Open Arms removed by Recruiter: No answer in interview", character.Notes)
}

func TestWithdraw(t *testing.T) {
	workflow, db := newWorkflow(t)
	home := seedCorporation(t, db, 2001, "Wormbro", false)
	target := seedCorporation(t, db, 2003, "Open Arms", true)
	applicant := seedApplicant(t, db, 1001, "Alex", home.ID)
	stranger := seedApplicant(t, db, 1002, "Quin", home.ID)

	application, err := workflow.Apply(applicant, target.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, workflow.Withdraw(stranger, application), ErrNotAllowed)

	require.NoError(t, workflow.Withdraw(applicant, application))

	gone, err := workflow.ApplicationByID(application.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// Withdrawal leaves no trace in the notes
	var character model.Character
	require.NoError(t, db.First(&character, applicant.ID).Error)
	assert.Empty(t, character.Notes)

	// And frees the one-pending-application slot
	_, err = workflow.Apply(applicant, target.ID)
	assert.NoError(t, err)
}

func TestSetReady(t *testing.T) {
	workflow, db := newWorkflow(t)
	home := seedCorporation(t, db, 2001, "Wormbro", false)
	target := seedCorporation(t, db, 2003, "Open Arms", true)
	applicant := seedApplicant(t, db, 1001, "Alex", home.ID)

	application, err := workflow.Apply(applicant, target.ID)
	require.NoError(t, err)

	require.NoError(t, workflow.SetReady(application, true))
	assert.True(t, application.ReadyAccepted)

	var stored model.Application
	require.NoError(t, db.First(&stored, application.ID).Error)
	assert.True(t, stored.ReadyAccepted)

	require.NoError(t, workflow.SetReady(application, false))
	assert.False(t, application.ReadyAccepted)
}

func TestApplicationsForCorporation(t *testing.T) {
	workflow, db := newWorkflow(t)
	home := seedCorporation(t, db, 2001, "Wormbro", false)
	target := seedCorporation(t, db, 2003, "Open Arms", true)
	other := seedCorporation(t, db, 2004, "Bystanders", true)

	first := seedApplicant(t, db, 1001, "Alex", home.ID)
	second := seedApplicant(t, db, 1002, "Quin", home.ID)
	third := seedApplicant(t, db, 1003, "Rook", home.ID)

	_, err := workflow.Apply(first, target.ID)
	require.NoError(t, err)
	_, err = workflow.Apply(second, target.ID)
	require.NoError(t, err)
	_, err = workflow.Apply(third, other.ID)
	require.NoError(t, err)

	applications, err := workflow.ApplicationsForCorporation(target.ID)
	require.NoError(t, err)
	require.Len(t, applications, 2)
	assert.Equal(t, first.ID, applications[0].CharacterID, "oldest first")
	assert.Equal(t, "Alex", applications[0].Character.Name, "applicants come preloaded")
}

func TestEditNotes(t *testing.T) {
	workflow, db := newWorkflow(t)
	seedCorporation(t, db, 2001, "Wormbro", false)
	character := seedApplicant(t, db, 1001, "Alex", 2001)

	require.NoError(t, workflow.EditNotes(character, "Vouched by corp CEO"))
	assert.Equal(t, "Vouched by corp CEO", character.Notes)

	var stored model.Character
	require.NoError(t, db.First(&stored, character.ID).Error)
	assert.Equal(t, "Vouched by corp CEO", stored.Notes)
}
