package syncer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/WizBoom/Apate/internal/directory"
	"github.com/WizBoom/Apate/internal/esi"
	"github.com/WizBoom/Apate/internal/model"
)

const testAllianceID int64 = 99006650

// fakeUpstream serves both the ESI read endpoints and the SSO token endpoint
// from one scripted server
type fakeUpstream struct {
	characters   map[int64]esi.CharacterInfo
	corporations map[int64]esi.CorporationInfo
	members      map[int64][]int64
	tokens       esi.TokenResponse
	tokenStatus  int
	// fail maps a request path to a forced status code
	fail          map[string]int
	tokenRequests int
	server        *httptest.Server
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()

	f := &fakeUpstream{
		characters:   map[int64]esi.CharacterInfo{},
		corporations: map[int64]esi.CorporationInfo{},
		members:      map[int64][]int64{},
		tokens:       esi.TokenResponse{AccessToken: "at-new", RefreshToken: "rt-new", TokenType: "Bearer", ExpiresIn: 1200},
		fail:         map[string]int{},
	}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON := func(v interface{}) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(v)
		}

		if r.URL.Path == "/oauth/token" {
			f.tokenRequests++
			if f.tokenStatus != 0 && f.tokenStatus != http.StatusOK {
				w.WriteHeader(f.tokenStatus)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"expired"}`))
				return
			}
			writeJSON(f.tokens)
			return
		}

		if status, ok := f.fail[r.URL.Path]; ok {
			w.WriteHeader(status)
			return
		}

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		switch {
		case len(parts) == 2 && parts[0] == "characters":
			id, _ := strconv.ParseInt(parts[1], 10, 64)
			if info, ok := f.characters[id]; ok {
				writeJSON(info)
				return
			}
		case len(parts) == 2 && parts[0] == "corporations":
			id, _ := strconv.ParseInt(parts[1], 10, 64)
			if info, ok := f.corporations[id]; ok {
				writeJSON(info)
				return
			}
		case len(parts) == 3 && parts[0] == "corporations" && parts[2] == "members":
			id, _ := strconv.ParseInt(parts[1], 10, 64)
			if ids, ok := f.members[id]; ok {
				writeJSON(ids)
				return
			}
		}

		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(f.server.Close)

	return f
}

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

func newFixture(t *testing.T) (*Syncer, *gorm.DB, *fakeUpstream) {
	t.Helper()

	db := newTestDB(t)
	fake := newFakeUpstream(t)
	client := esi.NewClient(fake.server.URL, "test-agent", zap.NewNop())
	corpSSO := esi.NewSSO(fake.server.URL, "client-id", "client-secret", "http://localhost/callback", "corp-membership-read", "test-agent", zap.NewNop())
	dir := directory.New(db, client, zap.NewNop(), testAllianceID)
	return New(db, dir, client, corpSSO, zap.NewNop(), testAllianceID), db, fake
}

func seedAlliance(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&model.Alliance{ID: testAllianceID, Name: "The Society", Ticker: "GETIN"}).Error)
}

func seedCorporation(t *testing.T, db *gorm.DB, id int64, name string, inAlliance bool, refreshToken string) *model.Corporation {
	t.Helper()

	corporation := &model.Corporation{ID: id, Name: name, Ticker: "TEST", RefreshToken: refreshToken}
	if inAlliance {
		allianceID := testAllianceID
		corporation.AllianceID = &allianceID
	}
	require.NoError(t, db.Create(corporation).Error)
	return corporation
}

func seedCharacter(t *testing.T, db *gorm.DB, id int64, name string, corpID int64) *model.Character {
	t.Helper()

	character := &model.Character{ID: id, Name: name, CorporationID: corpID, MainID: id}
	require.NoError(t, db.Create(character).Error)
	return character
}

func TestRunHappyPath(t *testing.T) {
	syncer, db, fake := newFixture(t)
	seedAlliance(t, db)
	seedCorporation(t, db, 2001, "Wormbro", true, "rt-old")
	seedCharacter(t, db, 1001, "Alex", 2001)

	fake.characters[1001] = esi.CharacterInfo{Name: "Alex", CorporationID: 2001}
	fake.characters[1002] = esi.CharacterInfo{Name: "Quin", CorporationID: 2001}
	fake.members[2001] = []int64{1002}

	report, err := syncer.Run()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, report.Status)
	assert.Equal(t, 1, report.CharactersChecked)
	assert.Equal(t, 0, report.CharactersUpdated)
	assert.Equal(t, 1, report.CorporationsChecked)
	assert.Equal(t, 1, report.CharactersCreated)

	// The unknown member was created as its own main
	var created model.Character
	require.NoError(t, db.First(&created, 1002).Error)
	assert.Equal(t, "Quin", created.Name)
	assert.Equal(t, created.ID, created.MainID)

	// The member roster no longer lists 1001, but the sweep is append-only
	var survivor model.Character
	assert.NoError(t, db.First(&survivor, 1001).Error)

	// Rotated tokens were persisted
	var corporation model.Corporation
	require.NoError(t, db.First(&corporation, 2001).Error)
	assert.Equal(t, "at-new", corporation.AccessToken)
	assert.Equal(t, "rt-new", corporation.RefreshToken)
	assert.Equal(t, 1, fake.tokenRequests)
}

func TestRunReassignsChangedCorporation(t *testing.T) {
	syncer, db, fake := newFixture(t)
	seedAlliance(t, db)
	seedCorporation(t, db, 2001, "Wormbro", true, "")
	seedCharacter(t, db, 1001, "Alex", 2001)

	fake.characters[1001] = esi.CharacterInfo{Name: "Alex", CorporationID: 2002}
	fake.corporations[2002] = esi.CorporationInfo{Name: "New Home", Ticker: "NEWH"}

	report, err := syncer.Run()
	require.NoError(t, err)

	assert.Equal(t, 1, report.CharactersChecked)
	assert.Equal(t, 1, report.CharactersUpdated)

	var character model.Character
	require.NoError(t, db.First(&character, 1001).Error)
	assert.Equal(t, int64(2002), character.CorporationID)

	// The destination corporation was lazily created on the way
	var corporation model.Corporation
	assert.NoError(t, db.First(&corporation, 2002).Error)
}

func TestRunAbortsOnCharacterLookupFailure(t *testing.T) {
	syncer, db, fake := newFixture(t)
	seedAlliance(t, db)
	seedCorporation(t, db, 2001, "Wormbro", true, "")
	seedCharacter(t, db, 1001, "Alex", 2001)
	seedCharacter(t, db, 1002, "Quin", 2001)
	seedCharacter(t, db, 1003, "Rook", 2001)

	fake.characters[1001] = esi.CharacterInfo{Name: "Alex", CorporationID: 2001}
	fake.fail["/characters/1002/"] = http.StatusInternalServerError
	// 1003 would have moved, but the sweep never reaches it
	fake.characters[1003] = esi.CharacterInfo{Name: "Rook", CorporationID: 2002}
	fake.corporations[2002] = esi.CorporationInfo{Name: "New Home", Ticker: "NEWH"}

	report, err := syncer.Run()
	require.Error(t, err)

	assert.Equal(t, http.StatusInternalServerError, report.Status)
	assert.Equal(t, 1, report.CharactersChecked, "everything before the failing lookup stays committed")
	assert.Equal(t, 0, report.CorporationsChecked)

	var untouched model.Character
	require.NoError(t, db.First(&untouched, 1003).Error)
	assert.Equal(t, int64(2001), untouched.CorporationID)
}

func TestRunSkipsCorporationsWithoutToken(t *testing.T) {
	syncer, db, fake := newFixture(t)
	seedAlliance(t, db)
	seedCorporation(t, db, 2001, "Wormbro", true, "")
	seedCorporation(t, db, 2003, "Outsider", false, "rt-outside")

	report, err := syncer.Run()
	require.NoError(t, err)

	// 2001 has no token, 2003 is outside the primary alliance
	assert.Equal(t, 0, report.CorporationsChecked)
	assert.Equal(t, 0, fake.tokenRequests)
}

func TestRunAbortsOnTokenRefreshFailure(t *testing.T) {
	syncer, db, fake := newFixture(t)
	seedAlliance(t, db)
	seedCorporation(t, db, 2001, "Wormbro", true, "rt-expired")
	fake.tokenStatus = http.StatusBadRequest

	report, err := syncer.Run()
	require.Error(t, err)

	assert.Equal(t, http.StatusBadRequest, report.Status)
	assert.Equal(t, 0, report.CorporationsChecked)

	// The stored refresh token is left alone for the operator to replace
	var corporation model.Corporation
	require.NoError(t, db.First(&corporation, 2001).Error)
	assert.Equal(t, "rt-expired", corporation.RefreshToken)
}

func TestRunAbortsOnMemberListFailure(t *testing.T) {
	syncer, db, fake := newFixture(t)
	seedAlliance(t, db)
	seedCorporation(t, db, 2001, "Wormbro", true, "rt-old")
	fake.fail["/corporations/2001/members/"] = http.StatusForbidden

	report, err := syncer.Run()
	require.Error(t, err)

	assert.Equal(t, http.StatusForbidden, report.Status)
	assert.Equal(t, 0, report.CorporationsChecked)
}
