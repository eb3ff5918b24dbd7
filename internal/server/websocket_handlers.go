package server

import (
	"log/slog"

	"snapfeed/internal/middleware"
	"snapfeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// ActivityStreamHandler handles GET /api/ws/activity
// @Summary Live activity stream
// @Description WebSocket that pushes the caller's new activity log rows as {"type":"activity","payload":{...}}
// @Tags activity
// @Security BearerAuth
// @Param token query string false "Bearer token for clients that cannot set headers"
// @Success 101
// @Failure 401 {object} models.ErrorResponse
// @Failure 426 {object} models.ErrorResponse
// @Router /ws/activity [get]
func (s *Server) ActivityStreamHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals(middleware.LocalUserID).(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		if s.hub == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"activity stream unavailable"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			slog.Warn("activity stream rejected", "user_id", userID, "err", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		slog.Debug("activity stream connected", "user_id", userID)

		// Serve blocks until both pumps exit; conn goes back to the pool after.
		s.hub.Serve(client)
		slog.Debug("activity stream closed", "user_id", userID)
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("WebSocket upgrade required"))
		}
		return upgrade(c)
	}
}
