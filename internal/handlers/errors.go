package handlers

import (
	"errors"

	"cleanmarket/internal/types"

	"github.com/gofiber/fiber/v2"
)

var statusByError = []struct {
	err    error
	status int
}{
	{types.ErrNotFound, fiber.StatusNotFound},
	{types.ErrInvalidTransition, fiber.StatusConflict},
	{types.ErrForbidden, fiber.StatusForbidden},
	{types.ErrConflict, fiber.StatusConflict},
	{types.ErrValidation, fiber.StatusBadRequest},
	{types.ErrInsufficientFunds, fiber.StatusUnprocessableEntity},
}

// respondError writes the JSON error body for a service failure. The first matching
// sentinel decides the status; anything unrecognised is a 500 without details.
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	for _, mapping := range statusByError {
		if errors.Is(err, mapping.err) {
			return c.Status(mapping.status).JSON(fiber.Map{
				"error":   mapping.err.Error(),
				"details": err.Error(),
			})
		}
	}

	h.log.TraceFromContext(c.UserContext()).Function("respondError").
		Er("unhandled service error", err, "path", c.Path())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal error",
	})
}

func (h *Handler) badRequest(c *fiber.Ctx, msg string, err error) error {
	body := fiber.Map{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}
