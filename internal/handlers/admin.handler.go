package handlers

import (
	"cleanmarket/internal/app"
	"cleanmarket/internal/services"
	"cleanmarket/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AdminHandler struct {
	Handler
	scheduler      *services.SchedulerService
	fraud          *services.FraudService
	reconciliation *services.ReconciliationService
}

type debtThresholdRequest struct {
	Threshold decimal.Decimal `json:"threshold"`
}

func NewAdminHandler(app app.App, router fiber.Router) *AdminHandler {
	log := logger.New("handlers").File("admin_handler")
	return &AdminHandler{
		scheduler:      app.Services.Scheduler,
		fraud:          app.Services.Fraud,
		reconciliation: app.Services.Reconciliation,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *AdminHandler) Register() {
	admin := h.router.Group("/admin", h.middleware.RequireActor(), h.middleware.RequireAdmin())

	jobs := admin.Group("/jobs")
	jobs.Get("/", h.listJobs)
	jobs.Post("/:name/run", h.runJob)

	admin.Get("/fraud-flags/:userId", h.listFraudFlags)
	admin.Put("/debt-thresholds/:cleanerId", h.setDebtThreshold)
}

func (h *AdminHandler) listJobs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"jobs": h.scheduler.Jobs()})
}

// runJob triggers a job synchronously and returns its result.
func (h *AdminHandler) runJob(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("runJob")
	name := c.Params("name")

	log.Info("Manual job run requested", "job", name)
	result, err := h.scheduler.Trigger(c.UserContext(), name)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(result)
}

func (h *AdminHandler) listFraudFlags(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return h.badRequest(c, "Invalid user id", err)
	}

	flags, err := h.fraud.Flags(c.UserContext(), userID)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{"flags": flags})
}

func (h *AdminHandler) setDebtThreshold(c *fiber.Ctx) error {
	cleanerID, err := uuid.Parse(c.Params("cleanerId"))
	if err != nil {
		return h.badRequest(c, "Invalid cleaner id", err)
	}

	var req debtThresholdRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "Invalid request body", err)
	}

	threshold, err := h.reconciliation.SetDebtThreshold(c.UserContext(), cleanerID, req.Threshold)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{"debtThreshold": threshold})
}
