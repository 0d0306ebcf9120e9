package httpapi

import (
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"

	"github.com/yourorg/chat-backend/internal/auth"
	"github.com/yourorg/chat-backend/internal/ws"
)

// NewApp wires the fiber application: REST surface plus the websocket
// upgrade endpoint. limiter may be nil to disable rate limiting.
func NewApp(handler *ChatHandler, gateway *ws.Gateway, verifier auth.Verifier, limiter *RateLimiter) *fiber.App {
	app := fiber.New()
	app.Use(fiberlogger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// the gateway authenticates the socket itself from the handshake
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(gateway.Handle))

	api := app.Group("/api/v1", JWTAuth(verifier))
	if limiter != nil {
		api.Use(limiter.ByUser())
	}
	api.Get("/chats", handler.ListChats)
	api.Post("/chats", handler.CreateChat)
	api.Get("/chats/:id/messages", handler.GetMessages)
	api.Post("/chats/start-by-email", handler.StartChatByEmail)

	return app
}
