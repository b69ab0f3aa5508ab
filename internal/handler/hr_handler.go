package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/WizBoom/Apate/internal/hr"
	"github.com/WizBoom/Apate/internal/model"
	"github.com/WizBoom/Apate/pkg/logger"
	"github.com/WizBoom/Apate/prometheus"
)

// ListRecruitingCorporations returns corporations currently open for
// recruitment
func (h *Handler) ListRecruitingCorporations(c echo.Context) error {
	var corporations []model.Corporation
	result := h.db.Where("recruitment_open = ?", true).Order("name").Find(&corporations)
	if result.Error != nil {
		logger.FromEcho(c).Error("Failed to list recruiting corporations", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list corporations"})
	}
	return c.JSON(http.StatusOK, echo.Map{"corporations": corporations})
}

// Apply creates a recruitment application for the requesting character
func (h *Handler) Apply(c echo.Context) error {
	log := logger.FromEcho(c)
	character := currentCharacter(c)

	var req struct {
		CorporationID int64 `json:"corporation_id"`
	}
	if err := c.Bind(&req); err != nil || req.CorporationID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "corporation_id is required"})
	}

	application, err := h.hr.Apply(character, req.CorporationID)
	if err != nil {
		switch {
		case errors.Is(err, hr.ErrCorporationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
		case errors.Is(err, hr.ErrMissingPrerequisites):
			// The client redirects to the profile helper flow on this one
			return c.JSON(http.StatusConflict, echo.Map{
				"error":    err.Error(),
				"redirect": "/api/profile",
			})
		case errors.Is(err, hr.ErrAlreadyMember),
			errors.Is(err, hr.ErrRecruitmentClosed),
			errors.Is(err, hr.ErrPendingApplication):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		default:
			log.Error("Failed to create application", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create application"})
		}
	}

	prometheus.ApplicationCounter.WithLabelValues("apply").Inc()
	return c.JSON(http.StatusCreated, echo.Map{"application": application})
}

// GetApplication returns an application if the requester may view it
func (h *Handler) GetApplication(c echo.Context) error {
	character := currentCharacter(c)

	application, err := h.loadApplicationParam(c)
	if application == nil {
		return err
	}

	if !h.hr.CanView(character, application) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": hr.ErrNotAllowed.Error()})
	}

	return c.JSON(http.StatusOK, echo.Map{"application": application})
}

// ListApplications returns the pending applications targeting the
// requester's effective corporation
func (h *Handler) ListApplications(c echo.Context) error {
	character := currentCharacter(c)

	applications, err := h.hr.ApplicationsForCorporation(character.GetCorp().ID)
	if err != nil {
		logger.FromEcho(c).Error("Failed to list applications", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list applications"})
	}

	return c.JSON(http.StatusOK, echo.Map{"applications": applications})
}

// DeleteApplication withdraws the requester's own application, or removes
// someone else's as a reviewer — the latter requires a reason that lands in
// the applicant's notes
func (h *Handler) DeleteApplication(c echo.Context) error {
	log := logger.FromEcho(c)
	character := currentCharacter(c)

	application, err := h.loadApplicationParam(c)
	if application == nil {
		return err
	}

	if application.CharacterID == character.ID {
		if err := h.hr.Withdraw(character, application); err != nil {
			log.Error("Failed to withdraw application", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to withdraw application"})
		}
		prometheus.ApplicationCounter.WithLabelValues("withdraw").Inc()
		return c.JSON(http.StatusOK, echo.Map{"message": "Application withdrawn"})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := h.hr.Remove(character, application, req.Reason); err != nil {
		switch {
		case errors.Is(err, hr.ErrReasonRequired):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, hr.ErrNotAllowed):
			return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
		default:
			log.Error("Failed to remove application", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to remove application"})
		}
	}

	prometheus.ApplicationCounter.WithLabelValues("remove").Inc()
	return c.JSON(http.StatusOK, echo.Map{"message": "Application removed"})
}

// SetApplicationReady toggles the reviewer's ready-accepted flag
func (h *Handler) SetApplicationReady(c echo.Context) error {
	log := logger.FromEcho(c)
	character := currentCharacter(c)

	application, err := h.loadApplicationParam(c)
	if application == nil {
		return err
	}

	if !h.hr.CanView(character, application) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": hr.ErrNotAllowed.Error()})
	}

	var req struct {
		Ready bool `json:"ready"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := h.hr.SetReady(application, req.Ready); err != nil {
		log.Error("Failed to set application ready flag", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update application"})
	}

	prometheus.ApplicationCounter.WithLabelValues("ready").Inc()
	return c.JSON(http.StatusOK, echo.Map{"application": application})
}

// EditCharacterNotes replaces the free-text notes on a character
func (h *Handler) EditCharacterNotes(c echo.Context) error {
	log := logger.FromEcho(c)

	character, err := h.loadCharacterParam(c)
	if character == nil {
		return err
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := h.hr.EditNotes(character, req.Notes); err != nil {
		log.Error("Failed to edit character notes",
			zap.Int64("character_id", character.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to edit notes"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Notes updated"})
}

// loadApplicationParam resolves the :id path parameter to an application.
// On failure the HTTP error response has already been written.
func (h *Handler) loadApplicationParam(c echo.Context) (*model.Application, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid application ID"})
	}

	application, err := h.hr.ApplicationByID(uint(id))
	if err != nil {
		logger.FromEcho(c).Error("Failed to load application", zap.Uint64("id", id), zap.Error(err))
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load application"})
	}
	if application == nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "application not found"})
	}
	return application, nil
}
