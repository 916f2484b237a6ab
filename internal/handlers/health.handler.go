package handlers

import (
	"cleanmarket/internal/app"

	"github.com/gofiber/fiber/v2"
)

func HealthHandler(router fiber.Router, app *app.App) {
	router.Get("/health", func(c *fiber.Ctx) error {
		status := fiber.StatusOK
		body := fiber.Map{
			"status":    "ok",
			"version":   app.Config.GeneralVersion,
			"service":   "cleanmarket_api",
			"scheduler": app.Services.Scheduler != nil && app.Services.Scheduler.IsRunning(),
		}

		if app.Database.SQL != nil {
			if err := app.Database.Ping(c.UserContext()); err != nil {
				status = fiber.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}

		return c.Status(status).JSON(body)
	})
}
