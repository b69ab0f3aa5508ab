package model

import "time"

// Application is a character's recruitment application to a corporation.
// A character has at most one application at a time; the row is deleted on
// withdrawal or rejection, never soft-deleted. ReadyAccepted marks that a
// reviewer has cleared the applicant for manual acceptance in game.
type Application struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	CharacterID   int64     `json:"character_id" gorm:"uniqueIndex"`
	CorporationID int64     `json:"corporation_id" gorm:"index"`
	ReadyAccepted bool      `json:"ready_accepted" gorm:"default:false"`
	CreatedAt     time.Time `json:"created_at"`

	Character   Character   `json:"-" gorm:"foreignKey:CharacterID"`
	Corporation Corporation `json:"-" gorm:"foreignKey:CorporationID"`
}
