// Package directory resolves and lazily creates Character, Corporation, and
// Alliance records from external ESI data. Creation is idempotent: a second
// call with the same external id returns the existing record untouched.
// Entities are only ever materialized on first reference — a login callback,
// a sync sweep, or a membership lookup — never pre-seeded beyond the admin
// bootstrap.
package directory

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/WizBoom/Apate/internal/esi"
	"github.com/WizBoom/Apate/internal/model"
)

// ErrInvalidMain rejects a main reference that does not point at an existing
// character that is its own main. Chains of alts are not allowed.
var ErrInvalidMain = errors.New("main must reference an existing main character")

// Directory creates and looks up membership records
type Directory struct {
	db         *gorm.DB
	esi        *esi.Client
	log        *zap.Logger
	allianceID int64
}

// New creates a Directory with explicit dependencies
func New(db *gorm.DB, esiClient *esi.Client, log *zap.Logger, allianceID int64) *Directory {
	return &Directory{
		db:         db,
		esi:        esiClient,
		log:        log,
		allianceID: allianceID,
	}
}

// DB exposes the underlying handle for callers that need direct queries
func (d *Directory) DB() *gorm.DB {
	return d.db
}

// AllianceID returns the configured primary alliance id
func (d *Directory) AllianceID() int64 {
	return d.allianceID
}

// CharacterByID returns the character with the given external id, or nil
// when no such record exists
func (d *Directory) CharacterByID(id int64) (*model.Character, error) {
	var character model.Character
	result := d.db.First(&character, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &character, nil
}

// LoadCharacter returns the character with roles, permissions, corporation,
// admin-corp override, and application preloaded — everything the derived
// queries on model.Character need.
func (d *Directory) LoadCharacter(id int64) (*model.Character, error) {
	var character model.Character
	result := d.db.
		Preload("Roles.Permissions").
		Preload("Corporation").
		Preload("AdminCorp").
		Preload("Application").
		First(&character, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &character, nil
}

// CorporationByID returns the corporation with the given external id, or nil
func (d *Directory) CorporationByID(id int64) (*model.Corporation, error) {
	var corporation model.Corporation
	result := d.db.First(&corporation, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &corporation, nil
}

// AllianceByID returns the alliance with the given external id, or nil
func (d *Directory) AllianceByID(id int64) (*model.Alliance, error) {
	var alliance model.Alliance
	result := d.db.First(&alliance, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &alliance, nil
}

// CreateCharacter resolves or lazily creates a character from ESI data.
// mainID of zero makes the character its own main. A non-zero mainID must
// reference an existing character that is its own main.
func (d *Directory) CreateCharacter(id int64, mainID int64) (*model.Character, error) {
	existing, err := d.CharacterByID(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if mainID == 0 {
		mainID = id
	}
	if mainID != id {
		main, err := d.CharacterByID(mainID)
		if err != nil {
			return nil, err
		}
		if main == nil || !main.IsMain() {
			return nil, ErrInvalidMain
		}
	}

	info, status, err := d.esi.Character(id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		d.log.Warn("ESI returned no character record",
			zap.Int64("character_id", id),
			zap.Int("status", status))
		return nil, nil
	}

	character := &model.Character{
		ID:     id,
		Name:   info.Name,
		MainID: mainID,
	}

	// Resolve the corporation before the first write so a failed resolution
	// never leaves a half-built entity graph behind.
	corporation, err := d.CreateCorporation(info.CorporationID)
	if err != nil {
		return nil, err
	}
	if corporation == nil {
		d.log.Warn("Could not resolve corporation for new character",
			zap.Int64("character_id", id),
			zap.Int64("corporation_id", info.CorporationID))
		return nil, nil
	}
	character.CorporationID = corporation.ID

	if result := d.db.Create(character); result.Error != nil {
		return nil, result.Error
	}

	d.log.Info("Character created",
		zap.Int64("character_id", character.ID),
		zap.String("name", character.Name),
		zap.Int64("corporation_id", character.CorporationID))

	return character, nil
}

// CreateCorporation resolves or lazily creates a corporation from ESI data,
// resolving and linking its alliance first. If the alliance cannot be
// resolved the corporation is not persisted.
func (d *Directory) CreateCorporation(id int64) (*model.Corporation, error) {
	existing, err := d.CorporationByID(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	info, status, err := d.esi.Corporation(id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		d.log.Warn("ESI returned no corporation record",
			zap.Int64("corporation_id", id),
			zap.Int("status", status))
		return nil, nil
	}

	corporation := &model.Corporation{
		ID:      id,
		Name:    info.Name,
		Ticker:  info.Ticker,
		LogoURL: d.esi.CorporationLogoURL(id),
	}

	if info.AllianceID != nil {
		alliance, err := d.CreateAlliance(*info.AllianceID)
		if err != nil {
			return nil, err
		}
		if alliance == nil {
			d.log.Warn("Could not resolve alliance for new corporation",
				zap.Int64("corporation_id", id),
				zap.Int64("alliance_id", *info.AllianceID))
			return nil, nil
		}
		corporation.AllianceID = &alliance.ID
	}

	if result := d.db.Create(corporation); result.Error != nil {
		return nil, result.Error
	}

	d.log.Info("Corporation created",
		zap.Int64("corporation_id", corporation.ID),
		zap.String("name", corporation.Name),
		zap.String("ticker", corporation.Ticker))

	return corporation, nil
}

// CreateAlliance resolves or lazily creates an alliance from ESI data
func (d *Directory) CreateAlliance(id int64) (*model.Alliance, error) {
	existing, err := d.AllianceByID(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	info, status, err := d.esi.Alliance(id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		d.log.Warn("ESI returned no alliance record",
			zap.Int64("alliance_id", id),
			zap.Int("status", status))
		return nil, nil
	}

	alliance := &model.Alliance{
		ID:      id,
		Name:    info.Name,
		Ticker:  info.Ticker,
		LogoURL: d.esi.AllianceLogoURL(id),
	}

	if result := d.db.Create(alliance); result.Error != nil {
		return nil, result.Error
	}

	d.log.Info("Alliance created",
		zap.Int64("alliance_id", alliance.ID),
		zap.String("name", alliance.Name))

	return alliance, nil
}

// UpdateCharacterCorporation reassigns a character's membership to the given
// corporation, resolving or creating it first. A call with the character's
// current corporation id writes nothing — every sync pass funnels through
// here, so the guard keeps redundant writes off the hot path.
func (d *Directory) UpdateCharacterCorporation(character *model.Character, corpID int64) error {
	if character.CorporationID == corpID {
		return nil
	}

	corporation, err := d.CreateCorporation(corpID)
	if err != nil {
		return err
	}
	if corporation == nil {
		return fmt.Errorf("could not resolve corporation %d", corpID)
	}

	updates := map[string]interface{}{"corporation_id": corporation.ID}

	// An admin-corp override pointing at the corporation the character just
	// joined no longer overrides anything; drop it.
	if character.AdminCorpID != nil && *character.AdminCorpID == corporation.ID {
		updates["admin_corp_id"] = nil
		character.AdminCorpID = nil
	}

	if result := d.db.Model(character).Updates(updates); result.Error != nil {
		return result.Error
	}
	character.CorporationID = corporation.ID

	d.log.Info("Character corporation updated",
		zap.Int64("character_id", character.ID),
		zap.String("name", character.Name),
		zap.Int64("corporation_id", corporation.ID))

	return nil
}

// CreateAllCorporationsInAlliance fetches the full corporation roster of an
// alliance and creates each corporation. Used once at bootstrap to
// pre-populate the roster; subsequent runs are no-ops per corporation.
func (d *Directory) CreateAllCorporationsInAlliance(allianceID int64) (int, error) {
	ids, status, err := d.esi.AllianceCorporations(allianceID)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("alliance corporation roster request failed with status %d", status)
	}

	created := 0
	for _, id := range ids {
		existing, err := d.CorporationByID(id)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}
		corporation, err := d.CreateCorporation(id)
		if err != nil {
			return created, err
		}
		if corporation != nil {
			created++
		}
	}

	d.log.Info("Alliance corporation roster imported",
		zap.Int64("alliance_id", allianceID),
		zap.Int("corporations", len(ids)),
		zap.Int("created", created))

	return created, nil
}

// AltsOf returns all characters whose main is the given character, excluding
// the character itself
func (d *Directory) AltsOf(character *model.Character) ([]model.Character, error) {
	var alts []model.Character
	result := d.db.Where("main_id = ? AND id != ?", character.ID, character.ID).Find(&alts)
	if result.Error != nil {
		return nil, result.Error
	}
	return alts, nil
}

// MainOf returns the main character of the given character. A main is its
// own main.
func (d *Directory) MainOf(character *model.Character) (*model.Character, error) {
	if character.IsMain() {
		return character, nil
	}
	return d.CharacterByID(character.MainID)
}

// SetMain reassigns which main a character belongs to. The new main must be
// an existing character that is its own main, or the character itself.
func (d *Directory) SetMain(character *model.Character, mainID int64) error {
	if mainID != character.ID {
		main, err := d.CharacterByID(mainID)
		if err != nil {
			return err
		}
		if main == nil || !main.IsMain() {
			return ErrInvalidMain
		}
	}

	if result := d.db.Model(character).Update("main_id", mainID); result.Error != nil {
		return result.Error
	}
	character.MainID = mainID
	return nil
}

// CorporationsInAlliance returns all local corporations belonging to the
// given alliance
func (d *Directory) CorporationsInAlliance(allianceID int64) ([]model.Corporation, error) {
	var corporations []model.Corporation
	result := d.db.Where("alliance_id = ?", allianceID).Find(&corporations)
	if result.Error != nil {
		return nil, result.Error
	}
	return corporations, nil
}

// AllCharacters returns every locally known character
func (d *Directory) AllCharacters() ([]model.Character, error) {
	var characters []model.Character
	result := d.db.Find(&characters)
	if result.Error != nil {
		return nil, result.Error
	}
	return characters, nil
}
