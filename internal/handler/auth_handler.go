package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/WizBoom/Apate/internal/middleware"
	"github.com/WizBoom/Apate/pkg/logger"
	"github.com/WizBoom/Apate/prometheus"
)

// Login redirects the user to the EVE SSO authorization page
func (h *Handler) Login(c echo.Context) error {
	return c.Redirect(http.StatusFound, h.sso.AuthorizeURL(""))
}

// Callback completes the EVE SSO login. The character record is lazily
// created on first login; on every login the character's corporation is
// re-resolved and its delegated tokens refreshed from the SSO response.
func (h *Handler) Callback(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	code := c.QueryParam("code")
	if code == "" {
		log.Error("SSO callback without code", zap.String("url", c.Request().URL.String()))
		prometheus.RecordAuthError("sso_error")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "There was an error in EVE's response"})
	}

	auth, status, err := h.sso.Authenticate(code)
	if err != nil || auth == nil {
		log.Error("SSO authentication failed", zap.Int("status", status), zap.Error(err))
		prometheus.RecordAuthError("sso_error")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "There was an authentication error signing you in."})
	}

	character, err := h.directory.CharacterByID(auth.CharacterID)
	if err != nil {
		log.Error("Failed to look up character", zap.Int64("character_id", auth.CharacterID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	if character == nil {
		character, err = h.directory.CreateCharacter(auth.CharacterID, 0)
		if err != nil {
			log.Error("Failed to create character", zap.Int64("character_id", auth.CharacterID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
		}
		if character == nil {
			prometheus.RecordAuthError("esi_error")
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "Your character could not be resolved."})
		}
	} else {
		// Returning character: re-resolve the corporation in case it changed
		// since the last login.
		info, esiStatus, err := h.esi.Character(character.ID)
		if err == nil && esiStatus == http.StatusOK && info.CorporationID != character.CorporationID {
			if err := h.directory.UpdateCharacterCorporation(character, info.CorporationID); err != nil {
				log.Error("Failed to update character corporation on login",
					zap.Int64("character_id", character.ID), zap.Error(err))
			}
		}
	}

	// Store the delegated token pair for later ESI calls on the character's
	// behalf.
	if auth.AccessToken != "" {
		updates := map[string]interface{}{
			"access_token":  auth.AccessToken,
			"refresh_token": auth.RefreshToken,
		}
		if result := h.db.Model(character).Updates(updates); result.Error != nil {
			log.Error("Failed to store character tokens", zap.Int64("character_id", character.ID), zap.Error(result.Error))
		}
	}

	token, err := h.jwt.GenerateToken(character.ID, character.Name)
	if err != nil {
		log.Error("Failed to generate session token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	c.SetCookie(&http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(time.Duration(h.cfg.JWT.ExpirationHours) * time.Hour),
		HttpOnly: true,
	})

	log.Info("Character logged in with EVE SSO",
		zap.Int64("character_id", character.ID),
		zap.String("name", character.Name))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"character": echo.Map{
			"id":   character.ID,
			"name": character.Name,
		},
	})
}

// Logout clears the session cookie. Session tokens are stateless; this just
// logs the event and expires the cookie.
func (h *Handler) Logout(c echo.Context) error {
	log := logger.FromEcho(c)

	if character := middleware.CharacterFromEcho(c); character != nil {
		log.Debug("Character logged out", zap.String("name", character.Name))
	}

	c.SetCookie(&http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out"})
}
