package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/WizBoom/Apate/internal/directory"
	"github.com/WizBoom/Apate/pkg/logger"
)

// GetProfile returns the requesting character with its roles, corporation,
// main, and alts
func (h *Handler) GetProfile(c echo.Context) error {
	log := logger.FromEcho(c)
	character := currentCharacter(c)

	alts, err := h.directory.AltsOf(character)
	if err != nil {
		log.Error("Failed to list alts", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load profile"})
	}

	main, err := h.directory.MainOf(character)
	if err != nil {
		log.Error("Failed to resolve main", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load profile"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"character":   character,
		"corporation": character.GetCorp(),
		"main":        main,
		"alts":        alts,
		"has_tokens":  character.HasAPITokens(),
		"has_discord": character.HasDiscord(),
		"in_alliance": character.InAlliance(h.cfg.Eve.AllianceID),
	})
}

// LinkDiscord links or replaces the requester's Discord identity
func (h *Handler) LinkDiscord(c echo.Context) error {
	log := logger.FromEcho(c)
	character := currentCharacter(c)

	var req struct {
		DiscordID string `json:"discord_id"`
	}
	if err := c.Bind(&req); err != nil || req.DiscordID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "discord_id is required"})
	}

	if result := h.db.Model(character).Update("discord_id", req.DiscordID); result.Error != nil {
		log.Error("Failed to link Discord identity", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to link Discord"})
	}
	character.DiscordID = &req.DiscordID

	log.Info("Discord identity linked",
		zap.Int64("character_id", character.ID),
		zap.String("name", character.Name))

	return c.JSON(http.StatusOK, echo.Map{"message": "Discord linked"})
}

// UnlinkDiscord removes the requester's Discord identity
func (h *Handler) UnlinkDiscord(c echo.Context) error {
	log := logger.FromEcho(c)
	character := currentCharacter(c)

	if result := h.db.Model(character).Update("discord_id", nil); result.Error != nil {
		log.Error("Failed to unlink Discord identity", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to unlink Discord"})
	}
	character.DiscordID = nil

	return c.JSON(http.StatusOK, echo.Map{"message": "Discord unlinked"})
}

// SetMain reassigns the requester's main character
func (h *Handler) SetMain(c echo.Context) error {
	log := logger.FromEcho(c)
	character := currentCharacter(c)

	var req struct {
		MainID int64 `json:"main_id"`
	}
	if err := c.Bind(&req); err != nil || req.MainID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "main_id is required"})
	}

	if err := h.directory.SetMain(character, req.MainID); err != nil {
		if err == directory.ErrInvalidMain {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		log.Error("Failed to set main character", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to set main"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Main updated"})
}
