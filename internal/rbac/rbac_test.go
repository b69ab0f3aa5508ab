package rbac

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/WizBoom/Apate/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func newEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	return New(db, zap.NewNop()), db
}

func seedCharacter(t *testing.T, db *gorm.DB, id int64, name string) *model.Character {
	t.Helper()

	corporation := model.Corporation{ID: 2001, Name: "Wormbro", Ticker: "NW0RT"}
	require.NoError(t, db.FirstOrCreate(&corporation, model.Corporation{ID: 2001}).Error)

	character := &model.Character{ID: id, Name: name, CorporationID: corporation.ID, MainID: id}
	require.NoError(t, db.Create(character).Error)
	return character
}

// reloadCharacter fetches the character with the role graph the bulk edit
// path expects to find preloaded
func reloadCharacter(t *testing.T, db *gorm.DB, id int64) *model.Character {
	t.Helper()

	var character model.Character
	require.NoError(t, db.Preload("Roles.Permissions").First(&character, id).Error)
	return &character
}

func TestAddRoleDuplicate(t *testing.T) {
	engine, _ := newEngine(t)

	role, err := engine.AddRole("Recruiter")
	require.NoError(t, err)
	require.NotNil(t, role)

	_, err = engine.AddRole("Recruiter")
	assert.ErrorIs(t, err, ErrRoleExists)

	// Duplicate detection is case-insensitive
	_, err = engine.AddRole("recruiter")
	assert.ErrorIs(t, err, ErrRoleExists)

	roles, err := engine.AllRoles()
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestAddPermissionIdempotent(t *testing.T) {
	engine, _ := newEngine(t)

	first, err := engine.AddPermission(model.PermissionReadApplications)
	require.NoError(t, err)
	second, err := engine.AddPermission(model.PermissionReadApplications)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestEditRolePermissions(t *testing.T) {
	engine, _ := newEngine(t)

	for _, name := range []string{model.PermissionAdmin, model.PermissionReadApplications, "ban_members"} {
		_, err := engine.AddPermission(name)
		require.NoError(t, err)
	}
	role, err := engine.AddRole("Recruiter")
	require.NoError(t, err)

	added, removed, err := engine.EditRolePermissions(role, map[string]bool{
		model.PermissionReadApplications: true,
		"ban_members":                    true,
		"no_such_permission":             true, // unknown names are skipped
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ban_members", model.PermissionReadApplications}, added)
	assert.Empty(t, removed)
	assert.True(t, role.HasPermission(model.PermissionReadApplications))

	added, removed, err = engine.EditRolePermissions(role, map[string]bool{
		"ban_members":                    false,
		model.PermissionReadApplications: true, // already held, no delta
	})
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, []string{"ban_members"}, removed)
	assert.False(t, role.HasPermission("ban_members"))
}

func TestEditRolePermissionsNeverStripsAdmin(t *testing.T) {
	engine, _ := newEngine(t)

	_, err := engine.AddPermission(model.PermissionAdmin)
	require.NoError(t, err)
	role, err := engine.AddRole(model.RoleAdmin)
	require.NoError(t, err)

	_, _, err = engine.EditRolePermissions(role, map[string]bool{model.PermissionAdmin: true})
	require.NoError(t, err)

	// An explicit uncheck of admin in the bulk form is ignored
	added, removed, err := engine.EditRolePermissions(role, map[string]bool{model.PermissionAdmin: false})
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Empty(t, removed)

	reloaded, err := engine.RoleByName(model.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, reloaded.HasPermission(model.PermissionAdmin))
}

func TestRemoveRole(t *testing.T) {
	engine, db := newEngine(t)

	_, err := engine.AddPermission(model.PermissionReadApplications)
	require.NoError(t, err)
	role, err := engine.AddRole("Recruiter")
	require.NoError(t, err)
	_, _, err = engine.EditRolePermissions(role, map[string]bool{model.PermissionReadApplications: true})
	require.NoError(t, err)

	character := seedCharacter(t, db, 1001, "Alex")
	require.NoError(t, engine.AssignRole(character, "Recruiter"))

	require.NoError(t, engine.RemoveRole("Recruiter"))

	gone, err := engine.RoleByName("Recruiter")
	require.NoError(t, err)
	assert.Nil(t, gone)

	// Members and permissions survive, only the role and its joins go
	survivor := reloadCharacter(t, db, character.ID)
	assert.Empty(t, survivor.Roles)
	permission, err := engine.PermissionByName(model.PermissionReadApplications)
	require.NoError(t, err)
	assert.NotNil(t, permission)
}

func TestRemoveRoleProtections(t *testing.T) {
	engine, _ := newEngine(t)

	_, err := engine.AddPermission(model.PermissionAdmin)
	require.NoError(t, err)

	_, err = engine.AddRole(model.RoleAdmin)
	require.NoError(t, err)
	assert.ErrorIs(t, engine.RemoveRole(model.RoleAdmin), ErrProtectedRole)
	assert.ErrorIs(t, engine.RemoveRole("Admin"), ErrProtectedRole)

	// A differently named role granting admin is just as protected
	officer, err := engine.AddRole("Officer")
	require.NoError(t, err)
	_, _, err = engine.EditRolePermissions(officer, map[string]bool{model.PermissionAdmin: true})
	require.NoError(t, err)
	assert.ErrorIs(t, engine.RemoveRole("Officer"), ErrProtectedRole)

	assert.ErrorIs(t, engine.RemoveRole("nonexistent"), ErrRoleNotFound)
}

func TestAssignAndRevokeRole(t *testing.T) {
	engine, db := newEngine(t)

	_, err := engine.AddPermission(model.PermissionAdmin)
	require.NoError(t, err)
	role, err := engine.AddRole(model.RoleAdmin)
	require.NoError(t, err)
	_, _, err = engine.EditRolePermissions(role, map[string]bool{model.PermissionAdmin: true})
	require.NoError(t, err)

	character := seedCharacter(t, db, 1001, "Alex")
	require.NoError(t, engine.AssignRole(character, model.RoleAdmin))

	granted, err := engine.HasPermission(character.ID, model.PermissionAdmin)
	require.NoError(t, err)
	assert.True(t, granted)

	assert.ErrorIs(t, engine.AssignRole(character, "nonexistent"), ErrRoleNotFound)

	// The explicit per-character revoke is the one path allowed to strip an
	// admin-granting role
	require.NoError(t, engine.RevokeRole(character, model.RoleAdmin))
	granted, err = engine.HasPermission(character.ID, model.PermissionAdmin)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestEditCharacterRoles(t *testing.T) {
	engine, db := newEngine(t)

	_, err := engine.AddPermission(model.PermissionAdmin)
	require.NoError(t, err)
	adminRole, err := engine.AddRole(model.RoleAdmin)
	require.NoError(t, err)
	_, _, err = engine.EditRolePermissions(adminRole, map[string]bool{model.PermissionAdmin: true})
	require.NoError(t, err)
	_, err = engine.AddRole("Recruiter")
	require.NoError(t, err)

	character := seedCharacter(t, db, 1001, "Alex")
	require.NoError(t, engine.AssignRole(character, model.RoleAdmin))

	character = reloadCharacter(t, db, character.ID)
	added, removed, err := engine.EditCharacterRoles(character, map[string]bool{
		"Recruiter":     true,
		"no_such_role":  true,  // skipped
		model.RoleAdmin: false, // protected, ignored
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Recruiter"}, added)
	assert.Empty(t, removed)

	character = reloadCharacter(t, db, character.ID)
	assert.True(t, character.HasPermission(model.PermissionAdmin), "bulk edit never strips an admin-granting role")

	added, removed, err = engine.EditCharacterRoles(character, map[string]bool{"Recruiter": false})
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, []string{"Recruiter"}, removed)
}

func TestHasPermissionUnknownCharacter(t *testing.T) {
	engine, _ := newEngine(t)

	granted, err := engine.HasPermission(424242, model.PermissionAdmin)
	require.NoError(t, err)
	assert.False(t, granted)
}
