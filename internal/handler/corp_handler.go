package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/WizBoom/Apate/pkg/logger"
)

// GetCorporation returns the requester's effective corporation — the
// admin-corp override when set, the real corporation otherwise
func (h *Handler) GetCorporation(c echo.Context) error {
	character := currentCharacter(c)
	return c.JSON(http.StatusOK, echo.Map{"corporation": character.GetCorp()})
}

// EditCorporation updates the recruitment flag and in-house description of
// the requester's effective corporation
func (h *Handler) EditCorporation(c echo.Context) error {
	log := logger.FromEcho(c)
	character := currentCharacter(c)

	var req struct {
		RecruitmentOpen    *bool   `json:"recruitment_open"`
		InhouseDescription *string `json:"inhouse_description"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	corporation := character.GetCorp()

	updates := map[string]interface{}{}
	if req.RecruitmentOpen != nil {
		updates["recruitment_open"] = *req.RecruitmentOpen
	}
	if req.InhouseDescription != nil {
		updates["inhouse_description"] = *req.InhouseDescription
	}
	if len(updates) == 0 {
		return c.JSON(http.StatusOK, echo.Map{"corporation": corporation})
	}

	if result := h.db.Model(corporation).Updates(updates); result.Error != nil {
		log.Error("Failed to update corporation",
			zap.Int64("corporation_id", corporation.ID), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update corporation"})
	}

	log.Info("Corporation updated",
		zap.Int64("corporation_id", corporation.ID),
		zap.String("name", corporation.Name),
		zap.String("by", character.Name))

	return c.JSON(http.StatusOK, echo.Map{"corporation": corporation})
}
