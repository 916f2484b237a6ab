package handlers

import (
	"cleanmarket/internal/app"
	"cleanmarket/internal/handlers/middleware"
	"cleanmarket/internal/models"
	"cleanmarket/internal/services"
	"cleanmarket/internal/types"
	"cleanmarket/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type BookingHandler struct {
	Handler
	bookings *services.BookingService
}

type transitionRequest struct {
	Status models.BookingStatus `json:"status"`
	Meta   map[string]any       `json:"meta,omitempty"`
}

func NewBookingHandler(app app.App, router fiber.Router) *BookingHandler {
	log := logger.New("handlers").File("booking_handler")
	return &BookingHandler{
		bookings: app.Services.Booking,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *BookingHandler) Register() {
	bookings := h.router.Group("/bookings", h.middleware.RequireActor())
	bookings.Post("/", h.createBooking)
	bookings.Get("/:id", h.getBooking)
	bookings.Get("/:id/events", h.getBookingEvents)
	bookings.Post("/:id/transitions", h.transition)
}

// createBooking lets clients book for themselves and admins book on a client's behalf.
func (h *BookingHandler) createBooking(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("createBooking")
	actor, _ := middleware.GetActor(c)

	var req services.CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		log.Warn("Invalid request body", "error", err)
		return h.badRequest(c, "Invalid request body", err)
	}

	switch actor.Role {
	case types.RoleClient:
		req.ClientID = actor.ID
	case types.RoleAdmin:
	default:
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only clients and admins can create bookings",
		})
	}

	booking, err := h.bookings.Create(c.UserContext(), req)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"booking": booking})
}

func (h *BookingHandler) getBooking(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return h.badRequest(c, "Invalid booking id", err)
	}

	booking, err := h.bookings.Get(c.UserContext(), id)
	if err != nil {
		return h.respondError(c, err)
	}

	if !canView(c, booking) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not a party to this booking"})
	}

	return c.JSON(fiber.Map{"booking": booking})
}

func (h *BookingHandler) getBookingEvents(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return h.badRequest(c, "Invalid booking id", err)
	}

	booking, err := h.bookings.Get(c.UserContext(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	if !canView(c, booking) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not a party to this booking"})
	}

	events, err := h.bookings.History(c.UserContext(), id)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{"events": events})
}

func (h *BookingHandler) transition(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("transition")
	actor, _ := middleware.GetActor(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return h.badRequest(c, "Invalid booking id", err)
	}

	var req transitionRequest
	if err := c.BodyParser(&req); err != nil {
		log.Warn("Invalid request body", "error", err)
		return h.badRequest(c, "Invalid request body", err)
	}
	if !req.Status.Valid() {
		return h.badRequest(c, "Unknown booking status", nil)
	}

	booking, err := h.bookings.Transition(c.UserContext(), id, actor, req.Status, req.Meta)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{"booking": booking})
}

// canView allows admins, the booking's client and its assigned cleaner.
func canView(c *fiber.Ctx, booking *models.Booking) bool {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return false
	}

	switch actor.Role {
	case types.RoleAdmin:
		return true
	case types.RoleClient:
		return booking.IsClient(actor.ID)
	case types.RoleCleaner:
		return booking.IsAssignedCleaner(actor.ID)
	}
	return false
}
