// websocket/handler.go
package websocket

import (
	"tenant-onboarding-backend/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UpgradeMiddleware rejects plain HTTP requests on the websocket route.
func UpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler accepts a dashboard connection and streams progress events until
// the peer disconnects. Inbound frames are read only to detect closure.
func Handler(hub *Hub) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client := &Client{
			ID:   uuid.New(),
			Conn: conn,
			Hub:  hub,
			Send: make(chan WebSocketMessage, 64),
		}
		hub.register <- client

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					return
				}
				if err := conn.WriteJSON(message); err != nil {
					config.Logger.Debug("Dropping websocket client",
						zap.String("clientID", client.ID.String()),
						zap.Error(err),
					)
					hub.unregister <- client
					return
				}
			case <-done:
				hub.unregister <- client
				return
			}
		}
	})
}
