package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifierFunc func(ctx context.Context, raw string) (Identity, error)

func (f verifierFunc) VerifyToken(ctx context.Context, raw string) (Identity, error) {
	return f(ctx, raw)
}

var staticVerifier = verifierFunc(func(_ context.Context, raw string) (Identity, error) {
	if raw == "good" {
		return Identity{UserID: 123, TokenID: "jti-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	return Identity{}, errors.New("bad token")
})

func TestAuthRequired(t *testing.T) {
	app := fiber.New()
	app.Get("/test", AuthRequired(staticVerifier), func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"userID":  c.Locals(LocalUserID),
			"tokenID": c.Locals(LocalTokenID),
			"ctxUser": c.UserContext().Value(UserIDKey),
		})
	})

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{"Happy Path", "Bearer good", http.StatusOK},
		{"Missing Header", "", http.StatusUnauthorized},
		{"Invalid Format", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"Empty Bearer", "Bearer ", http.StatusUnauthorized},
		{"Rejected Token", "Bearer bad", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, float64(123), body["userID"])
				assert.Equal(t, "jti-1", body["tokenID"])
				assert.Equal(t, float64(123), body["ctxUser"])
			} else {
				assert.Equal(t, "AUTHENTICATION_ERROR", body["code"])
			}
		})
	}
}

func TestWebSocketAuthRequired(t *testing.T) {
	app := fiber.New()
	app.Get("/ws", WebSocketAuthRequired(staticVerifier), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/api", AuthRequired(staticVerifier), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws?token=good", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ws?token=bad", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// query tokens are only honoured on websocket routes
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api?token=good", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
