// Package rbac mutates the Role↔Permission and Character↔Role graphs under
// explicit operator action and answers permission checks.
//
// The "admin" name is protected in three ways: the role named "admin" can
// never be deleted, a role that grants the "admin" permission can never be
// deleted, and the bulk edit paths never strip "admin" — not the permission
// from a role, not an admin-granting role from a character. Only the
// explicit per-character revoke may remove an admin role.
package rbac

import (
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/WizBoom/Apate/internal/model"
)

var (
	// ErrRoleExists rejects creation of a duplicate role name
	ErrRoleExists = errors.New("a role with that name already exists")
	// ErrRoleNotFound rejects operations on an unknown role
	ErrRoleNotFound = errors.New("role not found")
	// ErrProtectedRole rejects deletion of the admin role or any role
	// granting the admin permission
	ErrProtectedRole = errors.New("cannot remove admin role")
)

// Engine mutates and queries the RBAC graph
type Engine struct {
	db  *gorm.DB
	log *zap.Logger
}

// New creates an Engine with explicit dependencies
func New(db *gorm.DB, log *zap.Logger) *Engine {
	return &Engine{db: db, log: log}
}

// RoleByName returns the role with the given name (case-insensitive) with
// its permissions preloaded, or nil when absent
func (e *Engine) RoleByName(name string) (*model.Role, error) {
	var role model.Role
	result := e.db.Preload("Permissions").
		Where("LOWER(name) = LOWER(?)", name).
		First(&role)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &role, nil
}

// PermissionByName returns the permission with the given name
// (case-insensitive), or nil when absent
func (e *Engine) PermissionByName(name string) (*model.Permission, error) {
	var permission model.Permission
	result := e.db.Where("LOWER(name) = LOWER(?)", name).First(&permission)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &permission, nil
}

// AllRoles returns every role with permissions preloaded
func (e *Engine) AllRoles() ([]model.Role, error) {
	var roles []model.Role
	result := e.db.Preload("Permissions").Order("name").Find(&roles)
	if result.Error != nil {
		return nil, result.Error
	}
	return roles, nil
}

// AllPermissions returns every permission
func (e *Engine) AllPermissions() ([]model.Permission, error) {
	var permissions []model.Permission
	result := e.db.Order("name").Find(&permissions)
	if result.Error != nil {
		return nil, result.Error
	}
	return permissions, nil
}

// AddRole creates an empty role. Duplicate names are rejected with
// ErrRoleExists and leave state unchanged.
func (e *Engine) AddRole(name string) (*model.Role, error) {
	existing, err := e.RoleByName(name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrRoleExists
	}

	role := &model.Role{Name: name}
	if result := e.db.Create(role); result.Error != nil {
		return nil, result.Error
	}

	e.log.Info("Role created", zap.String("role", name))
	return role, nil
}

// AddPermission creates a permission if it does not exist yet and returns it
func (e *Engine) AddPermission(name string) (*model.Permission, error) {
	existing, err := e.PermissionByName(name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	permission := &model.Permission{Name: name}
	if result := e.db.Create(permission); result.Error != nil {
		return nil, result.Error
	}
	return permission, nil
}

// EditRolePermissions applies a desired has-permission flag per permission
// name against the role's current permission set and returns the ordered
// lists of added and removed names for audit logging. The "admin" permission
// is never removed through this path. Unknown permission names are skipped
// with a warning.
func (e *Engine) EditRolePermissions(role *model.Role, desired map[string]bool) (added, removed []string, err error) {
	for name, want := range desired {
		has := role.HasPermission(name)

		switch {
		case want && !has:
			permission, err := e.PermissionByName(name)
			if err != nil {
				return nil, nil, err
			}
			if permission == nil {
				e.log.Warn("Skipping unknown permission in role edit",
					zap.String("role", role.Name),
					zap.String("permission", name))
				continue
			}
			if err := e.db.Model(role).Association("Permissions").Append(permission); err != nil {
				return nil, nil, err
			}
			added = append(added, permission.Name)

		case !want && has:
			if strings.EqualFold(name, model.PermissionAdmin) {
				// Protected: the bulk path never strips admin, even when
				// the submitted form explicitly unchecks it.
				e.log.Warn("Refusing to strip admin permission via bulk edit",
					zap.String("role", role.Name))
				continue
			}
			permission, err := e.PermissionByName(name)
			if err != nil {
				return nil, nil, err
			}
			if permission == nil {
				continue
			}
			if err := e.db.Model(role).Association("Permissions").Delete(permission); err != nil {
				return nil, nil, err
			}
			removed = append(removed, permission.Name)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)

	if len(added) > 0 || len(removed) > 0 {
		// Reload so the caller sees the final permission set
		if err := e.db.Preload("Permissions").First(role, role.ID).Error; err != nil {
			return added, removed, err
		}
		e.log.Info("Role permissions edited",
			zap.String("role", role.Name),
			zap.Strings("added", added),
			zap.Strings("removed", removed))
	}

	return added, removed, nil
}

// RemoveRole deletes a role and its join rows. The role named "admin" and
// any role granting the "admin" permission are protected; the rejection
// leaves state unchanged.
func (e *Engine) RemoveRole(name string) error {
	role, err := e.RoleByName(name)
	if err != nil {
		return err
	}
	if role == nil {
		return ErrRoleNotFound
	}

	if strings.EqualFold(role.Name, model.RoleAdmin) || role.HasPermission(model.PermissionAdmin) {
		e.log.Warn("Refusing to remove protected role", zap.String("role", role.Name))
		return ErrProtectedRole
	}

	// Clear join rows first; characters and permissions themselves survive.
	if err := e.db.Model(role).Association("Permissions").Clear(); err != nil {
		return err
	}
	if err := e.db.Model(role).Association("Characters").Clear(); err != nil {
		return err
	}
	if result := e.db.Delete(role); result.Error != nil {
		return result.Error
	}

	e.log.Info("Role removed", zap.String("role", role.Name))
	return nil
}

// AssignRole grants a role to a character
func (e *Engine) AssignRole(character *model.Character, roleName string) error {
	role, err := e.RoleByName(roleName)
	if err != nil {
		return err
	}
	if role == nil {
		return ErrRoleNotFound
	}

	if err := e.db.Model(character).Association("Roles").Append(role); err != nil {
		return err
	}

	e.log.Info("Role assigned",
		zap.String("role", role.Name),
		zap.Int64("character_id", character.ID),
		zap.String("character", character.Name))
	return nil
}

// RevokeRole removes a role from a character. This explicit path is the only
// one that may strip an admin-granting role.
func (e *Engine) RevokeRole(character *model.Character, roleName string) error {
	role, err := e.RoleByName(roleName)
	if err != nil {
		return err
	}
	if role == nil {
		return ErrRoleNotFound
	}

	if err := e.db.Model(character).Association("Roles").Delete(role); err != nil {
		return err
	}

	e.log.Info("Role revoked",
		zap.String("role", role.Name),
		zap.Int64("character_id", character.ID),
		zap.String("character", character.Name))
	return nil
}

// EditCharacterRoles applies a desired has-role flag per role name against
// the character's current role set and returns the ordered added and removed
// lists. Roles granting the "admin" permission are never removed through
// this bulk path. Character roles (with permissions) must be preloaded.
func (e *Engine) EditCharacterRoles(character *model.Character, desired map[string]bool) (added, removed []string, err error) {
	current := make(map[string]*model.Role, len(character.Roles))
	for i := range character.Roles {
		current[strings.ToLower(character.Roles[i].Name)] = &character.Roles[i]
	}

	for name, want := range desired {
		held := current[strings.ToLower(name)]

		switch {
		case want && held == nil:
			role, err := e.RoleByName(name)
			if err != nil {
				return nil, nil, err
			}
			if role == nil {
				e.log.Warn("Skipping unknown role in character edit",
					zap.Int64("character_id", character.ID),
					zap.String("role", name))
				continue
			}
			if err := e.db.Model(character).Association("Roles").Append(role); err != nil {
				return nil, nil, err
			}
			added = append(added, role.Name)

		case !want && held != nil:
			if held.HasPermission(model.PermissionAdmin) {
				e.log.Warn("Refusing to strip admin-granting role via bulk edit",
					zap.Int64("character_id", character.ID),
					zap.String("role", held.Name))
				continue
			}
			if err := e.db.Model(character).Association("Roles").Delete(held); err != nil {
				return nil, nil, err
			}
			removed = append(removed, held.Name)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)

	if len(added) > 0 || len(removed) > 0 {
		if err := e.db.Preload("Roles.Permissions").First(character, character.ID).Error; err != nil {
			return added, removed, err
		}
		e.log.Info("Character roles edited",
			zap.Int64("character_id", character.ID),
			zap.String("character", character.Name),
			zap.Strings("added", added),
			zap.Strings("removed", removed))
	}

	return added, removed, nil
}

// HasPermission loads the character's roles and answers whether any grants
// the named permission. This is the guard contract the web layer composes
// into middleware.
func (e *Engine) HasPermission(characterID int64, name string) (bool, error) {
	var character model.Character
	result := e.db.Preload("Roles.Permissions").First(&character, characterID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, result.Error
	}
	return character.HasPermission(name), nil
}
