package main

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/WizBoom/Apate/internal/directory"
	"github.com/WizBoom/Apate/internal/esi"
	"github.com/WizBoom/Apate/internal/handler"
	"github.com/WizBoom/Apate/internal/hr"
	"github.com/WizBoom/Apate/internal/middleware"
	"github.com/WizBoom/Apate/internal/model"
	"github.com/WizBoom/Apate/internal/rbac"
	"github.com/WizBoom/Apate/internal/syncer"
	"github.com/WizBoom/Apate/pkg/config"
	"github.com/WizBoom/Apate/pkg/database"
	"github.com/WizBoom/Apate/pkg/jwtutil"
	"github.com/WizBoom/Apate/pkg/logger"
	"github.com/WizBoom/Apate/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load("apate-auth")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting alliance auth portal...", cfg.LogConfig()...)

	// Initialize database
	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.MigrateModels(db, model.All()...); err != nil {
		log.Fatal("Failed to migrate models", zap.Error(err))
	}
	log.Info("Database connection established")

	// External service clients
	esiClient := esi.NewClient(cfg.Eve.ESIBaseURL, cfg.Eve.UserAgent, log)
	userSSO := esi.NewSSO(cfg.Eve.SSOBaseURL, cfg.Eve.ClientID, cfg.Eve.ClientSecret,
		cfg.Eve.CallbackURL, "", cfg.Eve.UserAgent, log)
	corpSSO := esi.NewSSO(cfg.Eve.SSOBaseURL, cfg.Eve.CorpClientID, cfg.Eve.CorpClientSecret,
		cfg.Eve.CorpCallbackURL, cfg.Eve.CorpScope, cfg.Eve.UserAgent, log)

	// Core components, explicit dependencies throughout
	dir := directory.New(db, esiClient, log, cfg.Eve.AllianceID)
	rbacEngine := rbac.New(db, log)
	workflow := hr.New(db, log)
	sync := syncer.New(db, dir, esiClient, corpSSO, log, cfg.Eve.AllianceID)

	jwtUtil := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      cfg.JWT.SigningKey,
		ExpirationHours: cfg.JWT.ExpirationHours,
	})

	// Initialize Prometheus metrics
	prometheus.InitMetrics()
	log.Info("Prometheus metrics initialized")

	h := handler.New(db, dir, rbacEngine, workflow, sync, esiClient, userSSO, corpSSO, jwtUtil, cfg)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Public routes
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)
	e.GET("/login", h.Login)
	e.GET("/eve/callback", h.Callback)
	e.GET("/logout", h.Logout)

	// API routes - all require an authenticated character
	api := e.Group("/api")
	api.Use(middleware.RequireAuth(jwtUtil, dir))

	// Profile
	profile := api.Group("/profile")
	profile.GET("", h.GetProfile)
	profile.PUT("/discord", h.LinkDiscord)
	profile.DELETE("/discord", h.UnlinkDiscord)
	profile.PUT("/main", h.SetMain)

	// HR / recruitment
	hrGroup := api.Group("/hr")
	hrGroup.GET("/corporations", h.ListRecruitingCorporations)
	hrGroup.POST("/applications", h.Apply)
	hrGroup.GET("/applications", h.ListApplications,
		middleware.RequirePermission(model.PermissionReadApplications, "application list"))
	hrGroup.GET("/applications/:id", h.GetApplication)
	hrGroup.DELETE("/applications/:id", h.DeleteApplication)
	hrGroup.PATCH("/applications/:id/ready", h.SetApplicationReady)
	hrGroup.PUT("/characters/:id/notes", h.EditCharacterNotes,
		middleware.RequirePermission(model.PermissionReadApplications, "character notes"))

	// Corp management - admins inside the alliance
	corp := api.Group("/corp")
	corp.Use(middleware.RequirePermission(model.PermissionAdmin, "corp management"))
	corp.Use(middleware.RequireAlliance(cfg.Eve.AllianceID))
	corp.GET("", h.GetCorporation)
	corp.PATCH("", h.EditCorporation)

	// Admin
	admin := api.Group("/admin")
	admin.Use(middleware.RequirePermission(model.PermissionAdmin, "administration"))
	admin.GET("/roles", h.ListRoles)
	admin.POST("/roles", h.AddRole)
	admin.PUT("/roles/:name", h.EditRole)
	admin.DELETE("/roles/:name", h.RemoveRole)
	admin.GET("/permissions", h.ListPermissions)
	admin.PUT("/characters/:id/roles", h.EditCharacterRoles)
	admin.POST("/characters/:id/roles", h.AssignRole)
	admin.DELETE("/characters/:id/roles/:role", h.RevokeRole)
	admin.PUT("/admin-corp", h.SetAdminCorp)
	admin.POST("/sync", h.Sync)
	admin.POST("/corporations/import", h.ImportCorporations)

	// Start server
	log.Info("Starting server", zap.String("port", cfg.Server.Port))
	if err := e.Start(":" + cfg.Server.Port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
