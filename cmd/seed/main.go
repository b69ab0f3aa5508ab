// Command seed bootstraps an empty portal database: it migrates the schema,
// creates the default permissions and the protected admin role, materializes
// the configured admin character from ESI, and grants it the admin role.
// Safe to re-run; every step is idempotent.
package main

import (
	"go.uber.org/zap"

	"github.com/WizBoom/Apate/internal/directory"
	"github.com/WizBoom/Apate/internal/esi"
	"github.com/WizBoom/Apate/internal/model"
	"github.com/WizBoom/Apate/internal/rbac"
	"github.com/WizBoom/Apate/pkg/config"
	"github.com/WizBoom/Apate/pkg/database"
	"github.com/WizBoom/Apate/pkg/logger"
)

func main() {
	cfg, err := config.Load("apate-auth")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()

	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.MigrateModels(db, model.All()...); err != nil {
		log.Fatal("Failed to migrate models", zap.Error(err))
	}

	esiClient := esi.NewClient(cfg.Eve.ESIBaseURL, cfg.Eve.UserAgent, log)
	dir := directory.New(db, esiClient, log, cfg.Eve.AllianceID)
	engine := rbac.New(db, log)

	// Default permissions
	for _, name := range []string{model.PermissionAdmin, model.PermissionReadApplications} {
		if _, err := engine.AddPermission(name); err != nil {
			log.Fatal("Failed to create permission", zap.String("permission", name), zap.Error(err))
		}
	}

	// Protected admin role granting the admin permission
	adminRole, err := engine.RoleByName(model.RoleAdmin)
	if err != nil {
		log.Fatal("Failed to look up admin role", zap.Error(err))
	}
	if adminRole == nil {
		adminRole, err = engine.AddRole(model.RoleAdmin)
		if err != nil {
			log.Fatal("Failed to create admin role", zap.Error(err))
		}
	}
	if !adminRole.HasPermission(model.PermissionAdmin) {
		if _, _, err := engine.EditRolePermissions(adminRole, map[string]bool{model.PermissionAdmin: true}); err != nil {
			log.Fatal("Failed to grant admin permission", zap.Error(err))
		}
	}

	if cfg.Eve.AdminCharacterID == 0 {
		log.Warn("EVE_ADMIN_CHARACTER_ID not set, skipping admin character bootstrap")
		return
	}

	admin, err := dir.CreateCharacter(cfg.Eve.AdminCharacterID, 0)
	if err != nil {
		log.Fatal("Failed to create admin character", zap.Error(err))
	}
	if admin == nil {
		log.Fatal("Admin character could not be resolved from ESI",
			zap.Int64("character_id", cfg.Eve.AdminCharacterID))
	}

	loaded, err := dir.LoadCharacter(admin.ID)
	if err != nil {
		log.Fatal("Failed to load admin character", zap.Error(err))
	}
	if !loaded.HasPermission(model.PermissionAdmin) {
		if err := engine.AssignRole(loaded, model.RoleAdmin); err != nil {
			log.Fatal("Failed to grant admin role", zap.Error(err))
		}
	}

	log.Info("Bootstrap complete",
		zap.Int64("admin_character_id", admin.ID),
		zap.String("admin_character", admin.Name))
}
