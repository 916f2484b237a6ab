package middleware

import (
	"strings"

	"cleanmarket/internal/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	ActorIDHeader   = "X-Actor-ID"
	ActorRoleHeader = "X-Actor-Role"

	ActorLocalKey = "actor"
)

// RequireActor reads the caller identity set by the upstream auth layer. SYSTEM is
// reserved for the scheduler and is never accepted from a request.
func (m *Middleware) RequireActor() fiber.Handler {
	log := m.log.Function("RequireActor")

	return func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Get(ActorIDHeader))
		if err != nil || id == uuid.Nil {
			log.Info("missing or malformed actor id", "traceID", GetTraceID(c))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Actor identity required",
			})
		}

		role := types.Role(strings.ToUpper(strings.TrimSpace(c.Get(ActorRoleHeader))))
		if !role.Valid() || role == types.RoleSystem {
			log.Info("invalid actor role", "role", role, "traceID", GetTraceID(c))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Valid actor role required",
			})
		}

		c.Locals(ActorLocalKey, types.Actor{ID: id, Role: role})
		return c.Next()
	}
}

// GetActor extracts the actor from Fiber context
func GetActor(c *fiber.Ctx) (types.Actor, bool) {
	actor, ok := c.Locals(ActorLocalKey).(types.Actor)
	return actor, ok
}
