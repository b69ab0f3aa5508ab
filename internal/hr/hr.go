// Package hr implements the recruitment application workflow: apply with
// prerequisite gating, guarded review, reviewer removal with a mandatory
// reason, applicant withdrawal, and the ready-accepted toggle.
//
// An application moves through none → pending → withdrawn, rejected, or
// ready-accepted. Acceptance into the corporation itself happens manually in
// game; ReadyAccepted only marks that a reviewer cleared the applicant.
package hr

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/WizBoom/Apate/internal/model"
)

var (
	// ErrCorporationNotFound rejects an application to an unknown corporation
	ErrCorporationNotFound = errors.New("corporation not found")
	// ErrAlreadyMember rejects an application to the character's own corporation
	ErrAlreadyMember = errors.New("you already belong to that corporation")
	// ErrRecruitmentClosed rejects an application to a corporation that is
	// not recruiting
	ErrRecruitmentClosed = errors.New("that corporation is not open for recruitment")
	// ErrPendingApplication enforces at most one pending application per
	// character
	ErrPendingApplication = errors.New("you already have a pending application")
	// ErrMissingPrerequisites signals that the applicant's profile lacks the
	// delegated API tokens or linked Discord identity; the web layer
	// redirects to the helper flow on this one.
	ErrMissingPrerequisites = errors.New("your profile is missing required API tokens or a linked Discord account")
	// ErrNotAllowed rejects a view or mutation by a character without
	// standing on the application
	ErrNotAllowed = errors.New("you are not allowed to access that application")
	// ErrReasonRequired enforces the mandatory free-text reason on reviewer
	// removal
	ErrReasonRequired = errors.New("a removal reason is required")
)

// Workflow handles recruitment applications
type Workflow struct {
	db  *gorm.DB
	log *zap.Logger
}

// New creates a Workflow with explicit dependencies
func New(db *gorm.DB, log *zap.Logger) *Workflow {
	return &Workflow{db: db, log: log}
}

// ApplicationByID returns an application with its character and corporation
// preloaded, or nil when absent
func (w *Workflow) ApplicationByID(id uint) (*model.Application, error) {
	var application model.Application
	result := w.db.Preload("Character").Preload("Corporation").First(&application, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &application, nil
}

// ApplicationsForCorporation returns all pending applications targeting the
// given corporation, applicants preloaded, oldest first
func (w *Workflow) ApplicationsForCorporation(corpID int64) ([]model.Application, error) {
	var applications []model.Application
	result := w.db.Preload("Character").
		Where("corporation_id = ?", corpID).
		Order("created_at").
		Find(&applications)
	if result.Error != nil {
		return nil, result.Error
	}
	return applications, nil
}

// Apply creates a pending application for the character to the given
// corporation. The corporation must exist locally, be open for recruitment,
// and not already employ the character; the character must have no pending
// application and a complete profile (API token pair, linked Discord).
func (w *Workflow) Apply(character *model.Character, corpID int64) (*model.Application, error) {
	var corporation model.Corporation
	if result := w.db.First(&corporation, corpID); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCorporationNotFound
		}
		return nil, result.Error
	}

	if character.CorporationID == corporation.ID {
		return nil, ErrAlreadyMember
	}
	if !corporation.RecruitmentOpen {
		return nil, ErrRecruitmentClosed
	}

	var count int64
	if result := w.db.Model(&model.Application{}).
		Where("character_id = ?", character.ID).
		Count(&count); result.Error != nil {
		return nil, result.Error
	}
	if count > 0 {
		return nil, ErrPendingApplication
	}

	if !character.HasAPITokens() || !character.HasDiscord() {
		return nil, ErrMissingPrerequisites
	}

	application := &model.Application{
		CharacterID:   character.ID,
		CorporationID: corporation.ID,
	}
	if result := w.db.Create(application); result.Error != nil {
		return nil, result.Error
	}

	w.log.Info("Application created",
		zap.Int64("character_id", character.ID),
		zap.String("character", character.Name),
		zap.Int64("corporation_id", corporation.ID),
		zap.String("corporation", corporation.Name))

	return application, nil
}

// CanView reports whether the viewer may read the application: it is their
// own, or they hold the read_applications permission and their effective
// corporation (admin-corp override included) is the application's target.
// The viewer's roles, permissions, corporation, and admin corp must be
// preloaded.
func (w *Workflow) CanView(viewer *model.Character, application *model.Application) bool {
	if viewer.ID == application.CharacterID {
		return true
	}
	if !viewer.HasPermission(model.PermissionReadApplications) {
		return false
	}
	return viewer.GetCorp().ID == application.CorporationID
}

// Remove deletes an application on a reviewer's decision. The reason is
// mandatory and is appended to the applicant's notes with reviewer
// attribution.
func (w *Workflow) Remove(reviewer *model.Character, application *model.Application, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if !w.CanView(reviewer, application) {
		return ErrNotAllowed
	}

	note := fmt.Sprintf("Application to %s removed by %s: %s",
		application.Corporation.Name, reviewer.Name, reason)
	notes := application.Character.Notes
	if notes != "" {
		notes += "\n"
	}
	notes += note

	if result := w.db.Model(&application.Character).Update("notes", notes); result.Error != nil {
		return result.Error
	}
	if result := w.db.Delete(application); result.Error != nil {
		return result.Error
	}

	w.log.Info("Application removed",
		zap.Uint("application_id", application.ID),
		zap.Int64("character_id", application.CharacterID),
		zap.String("reviewer", reviewer.Name),
		zap.String("reason", reason))

	return nil
}

// Withdraw deletes the applicant's own application. No reason required.
func (w *Workflow) Withdraw(applicant *model.Character, application *model.Application) error {
	if applicant.ID != application.CharacterID {
		return ErrNotAllowed
	}

	if result := w.db.Delete(application); result.Error != nil {
		return result.Error
	}

	w.log.Info("Application withdrawn",
		zap.Uint("application_id", application.ID),
		zap.Int64("character_id", application.CharacterID))

	return nil
}

// SetReady flips the reviewer's ready-accepted flag. No other validation.
func (w *Workflow) SetReady(application *model.Application, ready bool) error {
	if result := w.db.Model(application).Update("ready_accepted", ready); result.Error != nil {
		return result.Error
	}
	application.ReadyAccepted = ready
	return nil
}

// EditNotes replaces the free-text notes on a character
func (w *Workflow) EditNotes(character *model.Character, notes string) error {
	if result := w.db.Model(character).Update("notes", notes); result.Error != nil {
		return result.Error
	}
	character.Notes = notes
	return nil
}
