package middleware

import (
	"cleanmarket/internal/types"

	"github.com/gofiber/fiber/v2"
)

// RequireAdmin must run after RequireActor.
func (m *Middleware) RequireAdmin() fiber.Handler {
	log := m.log.Function("RequireAdmin")

	return func(c *fiber.Ctx) error {
		actor, ok := GetActor(c)
		if !ok {
			log.Info("actor not found in context")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Actor identity required",
			})
		}

		if actor.Role != types.RoleAdmin {
			log.Info("actor is not admin", "actorID", actor.ID, "role", actor.Role)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Admin access required",
			})
		}

		return c.Next()
	}
}
