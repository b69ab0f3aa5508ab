package model

import (
	"strings"
	"time"
)

// Character represents an EVE character known to the portal. The primary key
// is the external character id assigned by CCP — stable and never reused, so
// it doubles as the login identity delivered by the SSO.
type Character struct {
	ID            int64  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name          string `json:"name" gorm:"type:varchar(100)"`
	CorporationID int64  `json:"corporation_id" gorm:"index"`
	// MainID groups alts under a single main character. A character whose
	// MainID equals its own ID is a main; everything else is an alt of
	// that main.
	MainID int64 `json:"main_id" gorm:"index"`
	// AdminCorpID lets a character holding the "admin" permission browse
	// and manage a corporation other than its real one.
	AdminCorpID  *int64    `json:"admin_corp_id,omitempty"`
	AccessToken  string    `json:"-" gorm:"type:text"`
	RefreshToken string    `json:"-" gorm:"type:text"`
	DiscordID    *string   `json:"discord_id,omitempty" gorm:"type:varchar(100)"`
	Notes        string    `json:"notes" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relations
	Corporation Corporation  `json:"corporation,omitempty" gorm:"foreignKey:CorporationID"`
	AdminCorp   *Corporation `json:"-" gorm:"foreignKey:AdminCorpID"`
	Roles       []Role       `json:"roles,omitempty" gorm:"many2many:character_roles;constraint:OnDelete:CASCADE"`
	Application *Application `json:"application,omitempty" gorm:"foreignKey:CharacterID;constraint:OnDelete:CASCADE"`
}

// IsMain reports whether this character is its own main
func (c *Character) IsMain() bool {
	return c.MainID == c.ID
}

// HasPermission reports whether any of the character's roles grants the
// named permission. Comparison is case-insensitive and exactly one level
// deep: character → role → permission. Roles and their permissions must be
// preloaded.
func (c *Character) HasPermission(name string) bool {
	for i := range c.Roles {
		if c.Roles[i].HasPermission(name) {
			return true
		}
	}
	return false
}

// GetCorp returns the corporation the character acts in. A character holding
// the "admin" permission with an admin-corp override set sees that
// corporation instead of its real one; membership itself is untouched.
// AdminCorp must be preloaded for the override to resolve.
func (c *Character) GetCorp() *Corporation {
	if c.AdminCorpID != nil && c.AdminCorp != nil && c.HasPermission(PermissionAdmin) {
		return c.AdminCorp
	}
	return &c.Corporation
}

// InAlliance reports whether the character's real corporation belongs to the
// given alliance
func (c *Character) InAlliance(allianceID int64) bool {
	return c.Corporation.AllianceID != nil && *c.Corporation.AllianceID == allianceID
}

// HasAPITokens reports whether the character has a delegated ESI token pair
func (c *Character) HasAPITokens() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// HasDiscord reports whether the character has a linked Discord identity
func (c *Character) HasDiscord() bool {
	return c.DiscordID != nil && strings.TrimSpace(*c.DiscordID) != ""
}

func (c *Character) String() string {
	return "<Character-" + c.Name + ">"
}
