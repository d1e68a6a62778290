package server

import (
	"context"
	"errors"

	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketUpgrade rejects plain HTTP requests to /ws and resolves the
// optional caller identity before the upgrade. A token that is sent but
// invalid is rejected rather than downgraded to anonymous.
func (s *Server) WebsocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		userID, present, err := s.optionalUserID(c)
		if present && err != nil {
			return models.RespondWithError(c, models.NewUnauthorizedError("Invalid or expired token"))
		}
		if userID != 0 {
			setUserID(c, userID)
		}
		return c.Next()
	}
}

// WebsocketHandler serves the realtime channel. Inbound frames are routed
// through the event registry; outbound frames are the caller's user events.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		var userID uint
		if v, ok := conn.Locals("userID").(uint); ok {
			userID = v
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket registration refused", "user_id", userID, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		ctx := context.Background()
		if userID != 0 {
			ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
		}

		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			if err := s.events.Dispatch(ctx, c, message); err != nil {
				reason := "invalid frame"
				if errors.Is(err, notifications.ErrUnknownEvent) {
					reason = "unknown event"
				}
				middleware.Logger.WarnContext(ctx, "websocket "+reason, "error", err)
			}
		}

		go client.WritePump()
		// ReadPump blocks until the peer goes away; the connection is
		// released when this handler returns.
		client.ReadPump()
	})
}
