package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/WizBoom/Apate/internal/directory"
	"github.com/WizBoom/Apate/internal/model"
	"github.com/WizBoom/Apate/pkg/jwtutil"
	"github.com/WizBoom/Apate/pkg/logger"
)

// CharacterContextKey is the Echo context key holding the authenticated
// character
const CharacterContextKey = "character"

// RequireAuth creates a middleware that validates the session token and
// loads the authenticated character, with roles, permissions, corporation,
// and admin-corp override preloaded, into the request context. The token is
// read from the Authorization header or the "session" cookie.
func RequireAuth(jwtUtil *jwtutil.JWTUtil, dir *directory.Directory) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			tokenString := bearerToken(c)
			if tokenString == "" {
				log.Warn("Missing session token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}

			claims, err := jwtUtil.ValidateToken(tokenString)
			if err != nil {
				log.Warn("Invalid or expired session token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired session"})
			}

			character, err := dir.LoadCharacter(claims.CharacterID)
			if err != nil {
				log.Error("Failed to load character", zap.Int64("character_id", claims.CharacterID), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load character"})
			}
			if character == nil {
				log.Warn("Session token for unknown character", zap.Int64("character_id", claims.CharacterID))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown character"})
			}

			c.Set(CharacterContextKey, character)
			return next(c)
		}
	}
}

// CharacterFromEcho returns the authenticated character from the request
// context, or nil outside an authenticated route
func CharacterFromEcho(c echo.Context) *model.Character {
	character, ok := c.Get(CharacterContextKey).(*model.Character)
	if !ok {
		return nil
	}
	return character
}

func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	cookie, err := c.Cookie("session")
	if err != nil {
		return ""
	}
	return cookie.Value
}
