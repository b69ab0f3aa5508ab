package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/WizBoom/Apate/internal/model"
	"github.com/WizBoom/Apate/internal/rbac"
	"github.com/WizBoom/Apate/pkg/logger"
	"github.com/WizBoom/Apate/prometheus"
)

// ListRoles returns every role with its permissions
func (h *Handler) ListRoles(c echo.Context) error {
	roles, err := h.rbac.AllRoles()
	if err != nil {
		logger.FromEcho(c).Error("Failed to list roles", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list roles"})
	}
	return c.JSON(http.StatusOK, echo.Map{"roles": roles})
}

// ListPermissions returns every permission
func (h *Handler) ListPermissions(c echo.Context) error {
	permissions, err := h.rbac.AllPermissions()
	if err != nil {
		logger.FromEcho(c).Error("Failed to list permissions", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list permissions"})
	}
	return c.JSON(http.StatusOK, echo.Map{"permissions": permissions})
}

// AddRole creates a new empty role
func (h *Handler) AddRole(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	role, err := h.rbac.AddRole(req.Name)
	if err != nil {
		if errors.Is(err, rbac.ErrRoleExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		log.Error("Failed to create role", zap.String("role", req.Name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create role"})
	}

	prometheus.RoleOperationCounter.WithLabelValues("add").Inc()
	return c.JSON(http.StatusCreated, echo.Map{"role": role})
}

// EditRole applies a desired permission set to a role and reports the
// audit delta
func (h *Handler) EditRole(c echo.Context) error {
	log := logger.FromEcho(c)

	role, err := h.rbac.RoleByName(c.Param("name"))
	if err != nil {
		log.Error("Failed to look up role", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to look up role"})
	}
	if role == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
	}

	var req struct {
		Permissions map[string]bool `json:"permissions"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	added, removed, err := h.rbac.EditRolePermissions(role, req.Permissions)
	if err != nil {
		log.Error("Failed to edit role", zap.String("role", role.Name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to edit role"})
	}

	prometheus.RoleOperationCounter.WithLabelValues("edit").Inc()
	return c.JSON(http.StatusOK, echo.Map{
		"role":    role,
		"added":   added,
		"removed": removed,
	})
}

// RemoveRole deletes a role unless it is protected
func (h *Handler) RemoveRole(c echo.Context) error {
	log := logger.FromEcho(c)
	name := c.Param("name")

	if err := h.rbac.RemoveRole(name); err != nil {
		switch {
		case errors.Is(err, rbac.ErrRoleNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
		case errors.Is(err, rbac.ErrProtectedRole):
			return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
		default:
			log.Error("Failed to remove role", zap.String("role", name), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to remove role"})
		}
	}

	prometheus.RoleOperationCounter.WithLabelValues("remove").Inc()
	return c.JSON(http.StatusOK, echo.Map{"message": "Role removed"})
}

// EditCharacterRoles applies a desired role set to a character and reports
// the audit delta
func (h *Handler) EditCharacterRoles(c echo.Context) error {
	log := logger.FromEcho(c)

	character, err := h.loadCharacterParam(c)
	if character == nil {
		return err
	}

	var req struct {
		Roles map[string]bool `json:"roles"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	added, removed, err := h.rbac.EditCharacterRoles(character, req.Roles)
	if err != nil {
		log.Error("Failed to edit character roles",
			zap.Int64("character_id", character.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to edit character roles"})
	}

	prometheus.RoleOperationCounter.WithLabelValues("edit").Inc()
	return c.JSON(http.StatusOK, echo.Map{
		"added":   added,
		"removed": removed,
	})
}

// AssignRole grants a single role to a character
func (h *Handler) AssignRole(c echo.Context) error {
	character, err := h.loadCharacterParam(c)
	if character == nil {
		return err
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil || req.Role == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role is required"})
	}

	if err := h.rbac.AssignRole(character, req.Role); err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
		}
		logger.FromEcho(c).Error("Failed to assign role", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to assign role"})
	}

	prometheus.RoleOperationCounter.WithLabelValues("assign").Inc()
	return c.JSON(http.StatusOK, echo.Map{"message": "Role assigned"})
}

// RevokeRole removes a single role from a character. This is the only path
// that may strip an admin-granting role.
func (h *Handler) RevokeRole(c echo.Context) error {
	character, err := h.loadCharacterParam(c)
	if character == nil {
		return err
	}

	if err := h.rbac.RevokeRole(character, c.Param("role")); err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
		}
		logger.FromEcho(c).Error("Failed to revoke role", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to revoke role"})
	}

	prometheus.RoleOperationCounter.WithLabelValues("revoke").Inc()
	return c.JSON(http.StatusOK, echo.Map{"message": "Role revoked"})
}

// Sync runs one full membership sweep synchronously inside the request
func (h *Handler) Sync(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.SyncSweepCounter.Inc()

	report, err := h.syncer.Run()
	if err != nil {
		if report.Status != 0 && report.Status != http.StatusOK {
			prometheus.SyncAbortCounter.WithLabelValues(strconv.Itoa(report.Status)).Inc()
		}
		log.Error("Membership sweep failed", zap.Int("status", report.Status), zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error":  "sync sweep aborted",
			"report": report,
		})
	}

	prometheus.SyncCharactersCreated.Add(float64(report.CharactersCreated))
	return c.JSON(http.StatusOK, echo.Map{"report": report})
}

// ImportCorporations pre-populates the corporation roster of the primary
// alliance. Bootstrap use only; re-runs are per-corporation no-ops.
func (h *Handler) ImportCorporations(c echo.Context) error {
	log := logger.FromEcho(c)

	created, err := h.directory.CreateAllCorporationsInAlliance(h.cfg.Eve.AllianceID)
	if err != nil {
		log.Error("Failed to import alliance corporations", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "corporation import failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{"created": created})
}

// SetAdminCorp sets or clears the requesting admin's corporation override
func (h *Handler) SetAdminCorp(c echo.Context) error {
	log := logger.FromEcho(c)
	character := currentCharacter(c)

	var req struct {
		CorporationID *int64 `json:"corporation_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.CorporationID != nil {
		corporation, err := h.directory.CorporationByID(*req.CorporationID)
		if err != nil {
			log.Error("Failed to look up corporation", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to look up corporation"})
		}
		if corporation == nil {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "corporation not found"})
		}
	}

	if result := h.db.Model(character).Update("admin_corp_id", req.CorporationID); result.Error != nil {
		log.Error("Failed to set admin corp override", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to set override"})
	}
	character.AdminCorpID = req.CorporationID

	return c.JSON(http.StatusOK, echo.Map{"message": "Override updated"})
}

// loadCharacterParam resolves the :id path parameter to a character with
// roles preloaded. On failure the HTTP error response has already been
// written and the returned handler error should be propagated as-is.
func (h *Handler) loadCharacterParam(c echo.Context) (*model.Character, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid character ID"})
	}

	character, err := h.directory.LoadCharacter(id)
	if err != nil {
		logger.FromEcho(c).Error("Failed to load character", zap.Int64("character_id", id), zap.Error(err))
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load character"})
	}
	if character == nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "character not found"})
	}
	return character, nil
}
