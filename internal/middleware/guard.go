package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/WizBoom/Apate/pkg/logger"
)

// RequirePermission creates a middleware that rejects requests by characters
// without the named permission. Must run after RequireAuth.
func RequirePermission(permission, pageName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			character := CharacterFromEcho(c)
			if character == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}

			if !character.HasPermission(permission) {
				log.Info("Permission denied",
					zap.String("character", character.Name),
					zap.String("permission", permission),
					zap.String("page", pageName))
				return c.JSON(http.StatusForbidden, echo.Map{
					"error": fmt.Sprintf("You do not have the required permission (%s) to access %s.", permission, pageName),
				})
			}

			return next(c)
		}
	}
}

// RequireAlliance creates a middleware that rejects characters whose real
// corporation is outside the primary alliance. Must run after RequireAuth.
func RequireAlliance(allianceID int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			character := CharacterFromEcho(c)
			if character == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}

			if !character.InAlliance(allianceID) {
				log.Info("Alliance membership required",
					zap.String("character", character.Name),
					zap.Int64("alliance_id", allianceID))
				return c.JSON(http.StatusForbidden, echo.Map{
					"error": "This page requires you to be in the alliance.",
				})
			}

			return next(c)
		}
	}
}
