package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"cleanmarket/internal/events"
	"cleanmarket/internal/metrics"
	. "cleanmarket/internal/models"
	"cleanmarket/internal/repositories"
	"cleanmarket/internal/types"
	"cleanmarket/internal/utils"
	"cleanmarket/pkg/logger"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// RechargeRequest is the payment gateway's "funds cleared" notification.
type RechargeRequest struct {
	OwnerID        uuid.UUID       `json:"ownerId"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotencyKey"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
}

type ReconciliationReport struct {
	OwnerID    uuid.UUID       `json:"ownerId"`
	Balance    decimal.Decimal `json:"balance"`
	LedgerSum  decimal.Decimal `json:"ledgerSum"`
	Consistent bool            `json:"consistent"`
}

const maxReasonLength = 500

// LedgerService owns every write to wallets. Each posting moves the balance and
// appends its transaction in one unit, so balance always equals the transaction sum.
type LedgerService struct {
	tx      repositories.Transactor
	repos   repositories.Repository
	clock   clock.Clock
	events  events.Publisher
	metrics *metrics.Collector
	log     logger.Logger
}

func NewLedgerService(
	tx repositories.Transactor,
	repos repositories.Repository,
	clk clock.Clock,
	publisher events.Publisher,
	collector *metrics.Collector,
) *LedgerService {
	return &LedgerService{
		tx:      tx,
		repos:   repos,
		clock:   clk,
		events:  publisher,
		metrics: collector,
		log:     logger.New("ledgerService"),
	}
}

func (s *LedgerService) now() time.Time {
	return s.clock.Now().UTC()
}

// ApplyCommission posts a pending commission to the cleaner's wallet. It reports false
// when the commission was already applied by someone else. Free jobs are marked
// applied without a wallet posting.
func (s *LedgerService) ApplyCommission(ctx context.Context, commission *Commission) (bool, error) {
	log := s.log.TraceFromContext(ctx).Function("ApplyCommission")

	applied := false
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		now := s.now()

		flipped, err := s.repos.Commission.MarkApplied(ctx, commission.ID, now)
		if err != nil {
			return err
		}
		if !flipped {
			return nil
		}
		applied = true

		if commission.Amount.IsZero() {
			return nil
		}

		debit := commission.Amount.Neg()
		if err := s.repos.Wallet.Adjust(ctx, commission.CleanerID, debit, now); err != nil {
			return err
		}

		bookingID := commission.BookingID
		return s.repos.Wallet.AppendTransaction(ctx, &WalletTransaction{
			AppendOnlyModel: AppendOnlyModel{CreatedAt: now},
			OwnerID:         commission.CleanerID,
			Type:            WalletTransactionCommission,
			Amount:          debit,
			BookingID:       &bookingID,
			Metadata: datatypes.JSONMap{
				"commissionId": commission.ID.String(),
				"percentage":   commission.Percentage.String(),
			},
		})
	})
	if err != nil {
		return false, err
	}

	if !applied {
		log.Debug("Commission already applied", "commissionID", commission.ID)
		return false, nil
	}

	if !commission.Amount.IsZero() {
		s.metrics.WalletPosted(string(WalletTransactionCommission))
	}
	s.publishCommission(ctx, commission)

	return true, nil
}

// Recharge credits a wallet once per idempotency key. A repeated key returns the
// transaction recorded the first time and reports created as false.
func (s *LedgerService) Recharge(
	ctx context.Context,
	req RechargeRequest,
) (*WalletTransaction, bool, error) {
	log := s.log.TraceFromContext(ctx).Function("Recharge")

	key := strings.TrimSpace(req.IdempotencyKey)
	switch {
	case req.OwnerID == uuid.Nil:
		return nil, false, log.ErrorWithType(types.ErrValidation, "owner id is required")
	case key == "":
		return nil, false, log.ErrorWithType(types.ErrValidation, "idempotency key is required")
	case !req.Amount.IsPositive():
		return nil, false, log.ErrorWithType(
			types.ErrValidation,
			"recharge amount must be positive",
			"amount", req.Amount,
		)
	}

	existing, err := s.repos.Wallet.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		log.Info("Recharge already recorded", "key", key, "transactionID", existing.ID)
		return existing, false, nil
	}

	amount := req.Amount.Round(moneyPlaces)
	transaction := &WalletTransaction{
		OwnerID:        req.OwnerID,
		Type:           WalletTransactionRecharge,
		Amount:         amount,
		IdempotencyKey: &key,
		Metadata:       datatypes.JSONMap(req.Metadata),
	}

	err = s.tx.Execute(ctx, func(ctx context.Context) error {
		now := s.now()
		transaction.CreatedAt = now
		if err := s.repos.Wallet.Adjust(ctx, req.OwnerID, amount, now); err != nil {
			return err
		}
		return s.repos.Wallet.AppendTransaction(ctx, transaction)
	})
	if errors.Is(err, types.ErrConflict) {
		// lost a race with a concurrent delivery of the same event
		existing, findErr := s.repos.Wallet.FindByIdempotencyKey(ctx, key)
		if findErr == nil && existing != nil {
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}

	s.metrics.WalletPosted(string(WalletTransactionRecharge))
	log.Info("Wallet recharged", "ownerID", req.OwnerID, "amount", amount, "key", key)
	return transaction, true, nil
}

// Adjust posts a signed admin correction.
func (s *LedgerService) Adjust(
	ctx context.Context,
	ownerID uuid.UUID,
	amount decimal.Decimal,
	reason string,
) (*WalletTransaction, error) {
	log := s.log.TraceFromContext(ctx).Function("Adjust")

	amount = amount.Round(moneyPlaces)
	if amount.IsZero() {
		return nil, log.ErrorWithType(types.ErrValidation, "adjustment amount must not be zero")
	}
	reason, _ = utils.CleanText(reason, maxReasonLength)
	if reason == "" {
		return nil, log.ErrorWithType(types.ErrValidation, "adjustment reason is required")
	}

	transaction := &WalletTransaction{
		OwnerID:  ownerID,
		Type:     WalletTransactionAdjustment,
		Amount:   amount,
		Metadata: datatypes.JSONMap{"reason": reason},
	}
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		now := s.now()
		transaction.CreatedAt = now
		if err := s.repos.Wallet.Adjust(ctx, ownerID, amount, now); err != nil {
			return err
		}
		return s.repos.Wallet.AppendTransaction(ctx, transaction)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.WalletPosted(string(WalletTransactionAdjustment))
	log.Info("Wallet adjusted", "ownerID", ownerID, "amount", amount)
	return transaction, nil
}

// Payout moves funds out of a wallet and never takes the balance below zero.
func (s *LedgerService) Payout(
	ctx context.Context,
	ownerID uuid.UUID,
	amount decimal.Decimal,
) (*WalletTransaction, error) {
	log := s.log.TraceFromContext(ctx).Function("Payout")

	amount = amount.Round(moneyPlaces)
	if !amount.IsPositive() {
		return nil, log.ErrorWithType(types.ErrValidation, "payout amount must be positive", "amount", amount)
	}

	transaction := &WalletTransaction{
		OwnerID: ownerID,
		Type:    WalletTransactionPayout,
		Amount:  amount.Neg(),
	}
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		now := s.now()
		transaction.CreatedAt = now
		if err := s.repos.Wallet.Withdraw(ctx, ownerID, amount, now); err != nil {
			return err
		}
		return s.repos.Wallet.AppendTransaction(ctx, transaction)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.WalletPosted(string(WalletTransactionPayout))
	log.Info("Payout recorded", "ownerID", ownerID, "amount", amount)
	return transaction, nil
}

func (s *LedgerService) Wallet(
	ctx context.Context,
	ownerID uuid.UUID,
	limit int,
) (*Wallet, []*WalletTransaction, error) {
	wallet, err := s.repos.Wallet.Get(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}

	transactions, err := s.repos.Wallet.ListTransactions(ctx, ownerID, limit)
	if err != nil {
		return nil, nil, err
	}

	return wallet, transactions, nil
}

// Reconcile compares the stored balance with the sum of the wallet's transactions.
func (s *LedgerService) Reconcile(ctx context.Context, ownerID uuid.UUID) (ReconciliationReport, error) {
	log := s.log.TraceFromContext(ctx).Function("Reconcile")

	report := ReconciliationReport{OwnerID: ownerID}
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		wallet, err := s.repos.Wallet.Get(ctx, ownerID)
		if err != nil {
			return err
		}
		sum, err := s.repos.Wallet.SumTransactions(ctx, ownerID)
		if err != nil {
			return err
		}
		report.Balance = wallet.Balance.Round(moneyPlaces)
		report.LedgerSum = sum
		return nil
	})
	if err != nil {
		return ReconciliationReport{}, err
	}

	report.Consistent = report.Balance.Equal(report.LedgerSum)
	if !report.Consistent {
		log.Warn(
			"Wallet balance does not match ledger",
			"ownerID", ownerID,
			"balance", report.Balance,
			"ledgerSum", report.LedgerSum,
		)
	}
	return report, nil
}

func (s *LedgerService) publishCommission(ctx context.Context, commission *Commission) {
	if s.events == nil {
		return
	}

	cleanerID := commission.CleanerID
	err := s.events.Publish(ctx, events.COMMISSION_CHANNEL, events.Event{
		Type:   events.COMMISSION_APPLIED,
		UserID: &cleanerID,
		Data: map[string]any{
			"commissionId": commission.ID.String(),
			"bookingId":    commission.BookingID.String(),
			"amount":       commission.Amount.StringFixed(moneyPlaces),
			"freeJob":      commission.IsFreeJob,
		},
	})
	if err != nil {
		s.log.TraceFromContext(ctx).Function("publishCommission").
			Warn("failed to publish commission event", "commissionID", commission.ID, "error", err)
	}
}
