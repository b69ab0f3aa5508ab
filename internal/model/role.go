package model

import (
	"strings"
	"time"
)

// RoleAdmin is the protected role name: the role can never be deleted and
// is never stripped from a character through bulk edit paths.
const RoleAdmin = "admin"

// Role is a named collection of permissions assigned to characters
type Role struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(100);uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Permissions []Permission `json:"permissions,omitempty" gorm:"many2many:role_permissions;constraint:OnDelete:CASCADE"`
	Characters  []Character  `json:"-" gorm:"many2many:character_roles;constraint:OnDelete:CASCADE"`
}

// HasPermission reports whether the role grants the named permission,
// compared case-insensitively. Permissions must be preloaded.
func (r *Role) HasPermission(name string) bool {
	for i := range r.Permissions {
		if strings.EqualFold(r.Permissions[i].Name, name) {
			return true
		}
	}
	return false
}

func (r *Role) String() string {
	return "<Role-" + r.Name + ">"
}
