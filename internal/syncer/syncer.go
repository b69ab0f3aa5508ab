// Package syncer reconciles local membership records against ESI ground
// truth, corporation by corporation, character by character.
package syncer

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/WizBoom/Apate/internal/directory"
	"github.com/WizBoom/Apate/internal/esi"
)

// Report summarizes one sweep. Status carries the upstream HTTP status of
// the call that aborted the sweep, or 200 OK when the sweep completed.
type Report struct {
	CharactersChecked   int `json:"characters_checked"`
	CharactersUpdated   int `json:"characters_updated"`
	CorporationsChecked int `json:"corporations_checked"`
	CharactersCreated   int `json:"characters_created"`
	Status              int `json:"status"`
}

// Syncer walks all known characters and corporations and mirrors their
// current ESI membership into the local store
type Syncer struct {
	db         *gorm.DB
	directory  *directory.Directory
	esi        *esi.Client
	sso        *esi.SSO
	log        *zap.Logger
	allianceID int64
}

// New creates a Syncer with explicit dependencies. sso must be the corp SSO
// client (membership-read scope) — its refresh grant renews the delegated
// corporation tokens.
func New(db *gorm.DB, dir *directory.Directory, esiClient *esi.Client, sso *esi.SSO, log *zap.Logger, allianceID int64) *Syncer {
	return &Syncer{
		db:         db,
		directory:  dir,
		esi:        esiClient,
		sso:        sso,
		log:        log,
		allianceID: allianceID,
	}
}

// Run performs one full sweep: first every known character is re-resolved
// against ESI and reassigned if its corporation changed, then every primary-
// alliance corporation holding a delegated token has its member list fetched
// and unknown members created.
//
// The sweep is sequential and aborts on the first non-success upstream
// response, reporting that status. Commits happen per entity, so everything
// processed before an abort stays committed; a retried sweep is idempotent
// because corporation reassignment only writes on an actual change. Members
// who left a corporation are never removed here — the sweep is append-only.
func (s *Syncer) Run() (*Report, error) {
	report := &Report{Status: http.StatusOK}

	characters, err := s.directory.AllCharacters()
	if err != nil {
		return report, err
	}

	for i := range characters {
		character := &characters[i]

		info, status, err := s.esi.Character(character.ID)
		if err != nil {
			return report, err
		}
		if status != http.StatusOK {
			report.Status = status
			s.log.Error("Sweep aborted on character lookup",
				zap.Int64("character_id", character.ID),
				zap.String("name", character.Name),
				zap.Int("status", status))
			return report, fmt.Errorf("character lookup failed with status %d", status)
		}

		changed := character.CorporationID != info.CorporationID
		if err := s.directory.UpdateCharacterCorporation(character, info.CorporationID); err != nil {
			return report, err
		}

		report.CharactersChecked++
		if changed {
			report.CharactersUpdated++
		}
	}

	corporations, err := s.directory.CorporationsInAlliance(s.allianceID)
	if err != nil {
		return report, err
	}

	for i := range corporations {
		corporation := &corporations[i]
		if !corporation.HasMembershipToken() {
			continue
		}

		tokens, status, err := s.sso.Refresh(corporation.RefreshToken)
		if err != nil {
			return report, err
		}
		if status != http.StatusOK {
			report.Status = status
			s.log.Error("Sweep aborted on corporation token refresh",
				zap.Int64("corporation_id", corporation.ID),
				zap.String("name", corporation.Name),
				zap.Int("status", status))
			return report, fmt.Errorf("corporation token refresh failed with status %d", status)
		}

		updates := map[string]interface{}{"access_token": tokens.AccessToken}
		if tokens.RefreshToken != "" {
			// The SSO rotates refresh tokens on use
			updates["refresh_token"] = tokens.RefreshToken
		}
		if result := s.db.Model(corporation).Updates(updates); result.Error != nil {
			return report, result.Error
		}
		corporation.AccessToken = tokens.AccessToken

		members, status, err := s.esi.CorporationMembers(corporation.ID, corporation.AccessToken)
		if err != nil {
			return report, err
		}
		if status != http.StatusOK {
			report.Status = status
			s.log.Error("Sweep aborted on corporation member list",
				zap.Int64("corporation_id", corporation.ID),
				zap.String("name", corporation.Name),
				zap.Int("status", status))
			return report, fmt.Errorf("corporation member list failed with status %d", status)
		}
		report.CorporationsChecked++

		for _, memberID := range members {
			existing, err := s.directory.CharacterByID(memberID)
			if err != nil {
				return report, err
			}
			if existing != nil {
				continue
			}

			created, err := s.directory.CreateCharacter(memberID, 0)
			if err != nil {
				return report, err
			}
			if created != nil {
				report.CharactersCreated++
			}
		}
	}

	s.log.Info("Membership sweep complete",
		zap.Int("characters_checked", report.CharactersChecked),
		zap.Int("characters_updated", report.CharactersUpdated),
		zap.Int("corporations_checked", report.CorporationsChecked),
		zap.Int("characters_created", report.CharactersCreated))

	return report, nil
}
