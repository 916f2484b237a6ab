package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cleanmarket/config"
	"cleanmarket/internal/app"
	"cleanmarket/internal/handlers"
	"cleanmarket/internal/handlers/middleware"
	"cleanmarket/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberLogs "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/helmet/v2"
)

// Requests are small JSON documents: transitions, recharges, adjustments.
const bodyLimit = 1 * 1024 * 1024

type AppServer struct {
	FiberApp *fiber.App
	log      logger.Logger
}

func New(app *app.App) (*AppServer, error) {
	base := logger.New("server")
	log := base.Function("New")
	log.Info("Initializing server", "environment", app.Config.Environment)

	server := fiber.New(fiberConfig(app.Config, base))

	server.Use(cors.New(corsConfig(app.Config)))
	server.Use(fiberLogs.New())
	server.Use(compress.New())
	server.Use(helmet.New(securityHeaders()))

	if err := handlers.Router(server, app); err != nil {
		return nil, log.Err("failed to initialize handlers", err)
	}

	return &AppServer{FiberApp: server, log: base}, nil
}

func fiberConfig(cfg config.Config, log logger.Logger) fiber.Config {
	fc := fiber.Config{
		ServerHeader:            fmt.Sprintf("cleanmarket/%s", cfg.GeneralVersion),
		AppName:                 "cleanmarket_server",
		BodyLimit:               bodyLimit,
		EnableTrustedProxyCheck: true,
		ReadTimeout:             15 * time.Second,
		WriteTimeout:            30 * time.Second,
		IdleTimeout:             120 * time.Second,
		DisableStartupMessage:   true,
		ErrorHandler:            errorHandler(log),
	}

	if cfg.Environment == "development" {
		fc.DisableStartupMessage = false
		fc.EnablePrintRoutes = true
	}

	return fc
}

// Credentials require an explicit origin list.
func corsConfig(cfg config.Config) cors.Config {
	origins := cfg.CorsAllowOrigins
	if origins == "" {
		origins = "*"
	}

	return cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET, POST, PUT, OPTIONS",
		AllowHeaders: fmt.Sprintf(
			"Origin, Content-Type, Accept, Authorization, %s, %s, %s",
			middleware.TraceIDHeader,
			middleware.ActorIDHeader,
			middleware.ActorRoleHeader,
		),
		AllowCredentials: origins != "*",
		MaxAge:           300,
		ExposeHeaders:    middleware.TraceIDHeader,
	}
}

func securityHeaders() helmet.Config {
	return helmet.Config{
		XSSProtection:             "0",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		ReferrerPolicy:            "no-referrer",
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
		ContentSecurityPolicy:     "default-src 'none'; frame-ancestors 'none'",
	}
}

// errorHandler renders errors that escape the handlers (unknown routes, oversized
// bodies, panics turned into errors) with the same {"error": ...} body the handlers use.
func errorHandler(log logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
		}

		log.TraceFromContext(c.UserContext()).Function("errorHandler").
			Er("unhandled request error", err, "method", c.Method(), "path", c.Path())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

func (s *AppServer) Listen(port int) error {
	log := s.log.Function("Listen")

	if port <= 0 {
		return log.Error("Fatal error: invalid port", "port", port)
	}

	log.Info("Starting server", "port", port)
	return s.FiberApp.Listen(fmt.Sprintf(":%d", port))
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx ends.
func (s *AppServer) Shutdown(ctx context.Context) error {
	log := s.log.Function("Shutdown")

	if err := s.FiberApp.ShutdownWithContext(ctx); err != nil {
		return log.Err("server forced to shutdown", err)
	}
	log.Info("Server stopped")
	return nil
}
