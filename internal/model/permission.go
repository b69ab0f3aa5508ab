package model

import "time"

// Permission names used by the portal's own guard checks. Permission name
// comparison is case-insensitive everywhere.
const (
	PermissionAdmin            = "admin"
	PermissionReadApplications = "read_applications"
)

// Permission is a named access right granted to roles
type Permission struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(100);uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Roles []Role `json:"-" gorm:"many2many:role_permissions;constraint:OnDelete:CASCADE"`
}

func (p *Permission) String() string {
	return "<Permission-" + p.Name + ">"
}
