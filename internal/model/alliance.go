package model

import "time"

// Alliance represents an EVE alliance. The primary key is the external
// alliance id.
type Alliance struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name      string    `json:"name" gorm:"type:varchar(100)"`
	Ticker    string    `json:"ticker" gorm:"type:varchar(10)"`
	LogoURL   string    `json:"logo_url" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Corporations []Corporation `json:"-" gorm:"foreignKey:AllianceID;constraint:OnDelete:CASCADE"`
}

func (a *Alliance) String() string {
	return "<Alliance-" + a.Name + ">"
}
