// Package middleware provides authentication and authorization middleware for the application.
package middleware

import (
	"context"
	"strings"
	"time"

	"snapfeed/internal/models"
	"snapfeed/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// Identity is what a verified bearer token asserts about the caller.
type Identity struct {
	UserID    uint
	TokenID   string
	ExpiresAt time.Time
}

// TokenVerifier validates a raw bearer token and returns its identity.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (Identity, error)
}

// Locals keys set by AuthRequired.
const (
	LocalUserID         = "userID"
	LocalTokenID        = "tokenID"
	LocalTokenExpiresAt = "tokenExpiresAt"
)

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthRequired is a middleware that enforces authentication for protected routes.
func AuthRequired(v TokenVerifier) fiber.Handler {
	return authenticate(v, false)
}

// WebSocketAuthRequired also accepts the token as a ?token= query parameter,
// since browsers cannot set headers on WebSocket upgrades.
func WebSocketAuthRequired(v TokenVerifier) fiber.Handler {
	return authenticate(v, true)
}

func authenticate(v TokenVerifier, allowQuery bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := BearerToken(c)
		if !ok && allowQuery {
			token = c.Query("token")
			ok = token != ""
		}
		if !ok {
			observability.AuthFailures.WithLabelValues("missing_token").Inc()
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewAuthenticationError("Unauthenticated."))
		}

		identity, err := v.VerifyToken(c.UserContext(), token)
		if err != nil {
			observability.AuthFailures.WithLabelValues("invalid_token").Inc()
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewAuthenticationError("Invalid or expired token"))
		}

		c.Locals(LocalUserID, identity.UserID)
		c.Locals(LocalTokenID, identity.TokenID)
		c.Locals(LocalTokenExpiresAt, identity.ExpiresAt)
		// Sync to UserContext for logging and downstream services
		c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, identity.UserID))

		return c.Next()
	}
}
