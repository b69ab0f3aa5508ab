// Package handler contains the Echo HTTP handlers for the portal's JSON API.
package handler

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/WizBoom/Apate/internal/directory"
	"github.com/WizBoom/Apate/internal/esi"
	"github.com/WizBoom/Apate/internal/hr"
	"github.com/WizBoom/Apate/internal/middleware"
	"github.com/WizBoom/Apate/internal/model"
	"github.com/WizBoom/Apate/internal/rbac"
	"github.com/WizBoom/Apate/internal/syncer"
	"github.com/WizBoom/Apate/pkg/config"
	"github.com/WizBoom/Apate/pkg/jwtutil"
)

// Handler bundles the portal's components for the HTTP layer. Dependencies
// are explicit, constructed once at startup and passed by reference.
type Handler struct {
	db        *gorm.DB
	directory *directory.Directory
	rbac      *rbac.Engine
	hr        *hr.Workflow
	syncer    *syncer.Syncer
	esi       *esi.Client
	sso       *esi.SSO
	corpSSO   *esi.SSO
	jwt       *jwtutil.JWTUtil
	cfg       *config.Config
}

// New creates a Handler
func New(
	db *gorm.DB,
	dir *directory.Directory,
	rbacEngine *rbac.Engine,
	workflow *hr.Workflow,
	sync *syncer.Syncer,
	esiClient *esi.Client,
	sso *esi.SSO,
	corpSSO *esi.SSO,
	jwt *jwtutil.JWTUtil,
	cfg *config.Config,
) *Handler {
	return &Handler{
		db:        db,
		directory: dir,
		rbac:      rbacEngine,
		hr:        workflow,
		syncer:    sync,
		esi:       esiClient,
		sso:       sso,
		corpSSO:   corpSSO,
		jwt:       jwt,
		cfg:       cfg,
	}
}

// currentCharacter returns the authenticated character loaded by the auth
// middleware
func currentCharacter(c echo.Context) *model.Character {
	return middleware.CharacterFromEcho(c)
}
