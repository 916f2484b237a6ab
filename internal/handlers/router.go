package handlers

import (
	"cleanmarket/internal/app"
	"cleanmarket/internal/handlers/middleware"
	"cleanmarket/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	middleware middleware.Middleware
	log        logger.Logger
	router     fiber.Router
}

func Router(router fiber.Router, app *app.App) (err error) {
	router.Use(app.Middleware.TraceID())

	if app.Registry != nil {
		router.Get("/metrics", adaptor.HTTPHandler(
			promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}),
		))
	}

	api := router.Group("/api")
	HealthHandler(api, app)
	NewBookingHandler(*app, api).Register()
	NewWalletHandler(*app, api).Register()
	NewAdminHandler(*app, api).Register()

	return nil
}
