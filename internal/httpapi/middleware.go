package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/chat-backend/internal/auth"
)

const (
	localUserID    = "user_id"
	localUserEmail = "user_email"
)

// JWTAuth rejects requests without a valid bearer credential and binds
// the verified identity to the request context.
func JWTAuth(verifier auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization"})
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization"})
		}
		identity, err := verifier.Verify(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals(localUserID, identity.ID)
		c.Locals(localUserEmail, identity.Email)
		return c.Next()
	}
}
