package model

import "time"

// Corporation represents an EVE corporation. The primary key is the external
// corporation id. Corporations in the primary alliance may carry a delegated
// token pair used to read their membership list during sync sweeps.
type Corporation struct {
	ID                 int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name               string    `json:"name" gorm:"type:varchar(100)"`
	Ticker             string    `json:"ticker" gorm:"type:varchar(10)"`
	LogoURL            string    `json:"logo_url" gorm:"type:varchar(255)"`
	RecruitmentOpen    bool      `json:"recruitment_open" gorm:"default:false"`
	InhouseDescription string    `json:"inhouse_description" gorm:"type:text"`
	AllianceID         *int64    `json:"alliance_id,omitempty" gorm:"index"`
	AccessToken        string    `json:"-" gorm:"type:text"`
	RefreshToken       string    `json:"-" gorm:"type:text"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	// Relations
	Alliance     *Alliance     `json:"-" gorm:"foreignKey:AllianceID"`
	Characters   []Character   `json:"-" gorm:"foreignKey:CorporationID;constraint:OnDelete:CASCADE"`
	Applications []Application `json:"-" gorm:"foreignKey:CorporationID;constraint:OnDelete:CASCADE"`
}

// HasMembershipToken reports whether the corporation has a delegated token
// pair for membership reads
func (c *Corporation) HasMembershipToken() bool {
	return c.RefreshToken != ""
}

func (c *Corporation) String() string {
	return "<Corporation-" + c.Name + ">"
}
