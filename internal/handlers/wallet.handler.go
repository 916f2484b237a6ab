package handlers

import (
	"cleanmarket/internal/app"
	"cleanmarket/internal/handlers/middleware"
	"cleanmarket/internal/services"
	"cleanmarket/internal/types"
	"cleanmarket/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 500
)

type WalletHandler struct {
	Handler
	ledger *services.LedgerService
}

type adjustmentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

type payoutRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func NewWalletHandler(app app.App, router fiber.Router) *WalletHandler {
	log := logger.New("handlers").File("wallet_handler")
	return &WalletHandler{
		ledger: app.Services.Ledger,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *WalletHandler) Register() {
	wallets := h.router.Group("/wallets", h.middleware.RequireActor())
	wallets.Get("/:ownerId", h.getWallet)

	// recharge notifications arrive from the payment gateway under an admin identity
	requireAdmin := h.middleware.RequireAdmin()
	wallets.Post("/recharges", requireAdmin, h.recharge)
	wallets.Get("/:ownerId/reconciliation", requireAdmin, h.reconcile)
	wallets.Post("/:ownerId/adjustments", requireAdmin, h.adjust)
	wallets.Post("/:ownerId/payouts", requireAdmin, h.payout)
}

func (h *WalletHandler) getWallet(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("ownerId"))
	if err != nil {
		return h.badRequest(c, "Invalid owner id", err)
	}

	actor, _ := middleware.GetActor(c)
	if actor.Role != types.RoleAdmin && actor.ID != ownerID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not your wallet"})
	}

	limit := c.QueryInt("limit", defaultTransactionLimit)
	if limit <= 0 || limit > maxTransactionLimit {
		limit = defaultTransactionLimit
	}

	wallet, transactions, err := h.ledger.Wallet(c.UserContext(), ownerID, limit)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{"wallet": wallet, "transactions": transactions})
}

func (h *WalletHandler) recharge(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("recharge")

	var req services.RechargeRequest
	if err := c.BodyParser(&req); err != nil {
		log.Warn("Invalid request body", "error", err)
		return h.badRequest(c, "Invalid request body", err)
	}

	transaction, created, err := h.ledger.Recharge(c.UserContext(), req)
	if err != nil {
		return h.respondError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"transaction": transaction, "created": created})
}

func (h *WalletHandler) reconcile(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("ownerId"))
	if err != nil {
		return h.badRequest(c, "Invalid owner id", err)
	}

	report, err := h.ledger.Reconcile(c.UserContext(), ownerID)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(report)
}

func (h *WalletHandler) adjust(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("ownerId"))
	if err != nil {
		return h.badRequest(c, "Invalid owner id", err)
	}

	var req adjustmentRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "Invalid request body", err)
	}

	transaction, err := h.ledger.Adjust(c.UserContext(), ownerID, req.Amount, req.Reason)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"transaction": transaction})
}

func (h *WalletHandler) payout(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("ownerId"))
	if err != nil {
		return h.badRequest(c, "Invalid owner id", err)
	}

	var req payoutRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "Invalid request body", err)
	}

	transaction, err := h.ledger.Payout(c.UserContext(), ownerID, req.Amount)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"transaction": transaction})
}
