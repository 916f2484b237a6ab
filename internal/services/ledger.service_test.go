package services

import (
	"context"
	"errors"
	"testing"

	"cleanmarket/internal/events"
	. "cleanmarket/internal/models"
	"cleanmarket/internal/repositories"
	"cleanmarket/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLedgerService_RechargeIdempotent(t *testing.T) {
	f := newFixture(t)
	ownerID := uuid.New()
	req := RechargeRequest{
		OwnerID:        ownerID,
		Amount:         money("150.00"),
		IdempotencyKey: "gw-evt-001",
		Metadata:       map[string]any{"gateway": "cmi"},
	}

	first, created, err := f.services.Ledger.Recharge(f.ctx, req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, WalletTransactionRecharge, first.Type)

	second, created, err := f.services.Ledger.Recharge(f.ctx, req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	wallet, transactions, err := f.services.Ledger.Wallet(f.ctx, ownerID, 10)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(money("150")), wallet.Balance.String())
	assert.Len(t, transactions, 1)
}

func TestLedgerService_RechargeValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  RechargeRequest
	}{
		{name: "missing owner", req: RechargeRequest{Amount: money("10"), IdempotencyKey: "k"}},
		{name: "missing key", req: RechargeRequest{OwnerID: uuid.New(), Amount: money("10"), IdempotencyKey: "  "}},
		{name: "zero amount", req: RechargeRequest{OwnerID: uuid.New(), IdempotencyKey: "k"}},
		{name: "negative amount", req: RechargeRequest{OwnerID: uuid.New(), Amount: money("-5"), IdempotencyKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.services.Ledger.Recharge(f.ctx, tt.req)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestLedgerService_PayoutInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	ownerID := uuid.New()

	_, err := f.services.Ledger.Payout(f.ctx, ownerID, money("10"))
	assert.ErrorIs(t, err, types.ErrInsufficientFunds)

	_, _, err = f.services.Ledger.Recharge(f.ctx, RechargeRequest{
		OwnerID:        ownerID,
		Amount:         money("40"),
		IdempotencyKey: "gw-evt-002",
	})
	require.NoError(t, err)

	_, err = f.services.Ledger.Payout(f.ctx, ownerID, money("40.01"))
	assert.ErrorIs(t, err, types.ErrInsufficientFunds)

	payout, err := f.services.Ledger.Payout(f.ctx, ownerID, money("40"))
	require.NoError(t, err)
	assert.True(t, payout.Amount.Equal(money("-40")))

	wallet, err := f.repos.Wallet.Get(f.ctx, ownerID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())
}

func TestLedgerService_Adjust(t *testing.T) {
	f := newFixture(t)
	ownerID := uuid.New()

	_, err := f.services.Ledger.Adjust(f.ctx, ownerID, decimal.Zero, "nothing")
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = f.services.Ledger.Adjust(f.ctx, ownerID, money("5"), " ")
	assert.ErrorIs(t, err, types.ErrValidation)

	adjustment, err := f.services.Ledger.Adjust(f.ctx, ownerID, money("-12.50"), "damaged vase")
	require.NoError(t, err)
	assert.Equal(t, WalletTransactionAdjustment, adjustment.Type)
	assert.Equal(t, "damaged vase", adjustment.Metadata["reason"])

	wallet, err := f.repos.Wallet.Get(f.ctx, ownerID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(money("-12.50")))
}

func TestLedgerService_ReconcileMatchesTransactions(t *testing.T) {
	f := newFixture(t)
	ownerID := uuid.New()

	_, _, err := f.services.Ledger.Recharge(f.ctx, RechargeRequest{
		OwnerID:        ownerID,
		Amount:         money("300"),
		IdempotencyKey: "gw-evt-003",
	})
	require.NoError(t, err)
	_, err = f.services.Ledger.Adjust(f.ctx, ownerID, money("-20.25"), "late arrival refund")
	require.NoError(t, err)
	_, err = f.services.Ledger.Payout(f.ctx, ownerID, money("100"))
	require.NoError(t, err)

	report, err := f.services.Ledger.Reconcile(f.ctx, ownerID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.True(t, report.Balance.Equal(money("179.75")), report.Balance.String())
	assert.True(t, report.LedgerSum.Equal(report.Balance))
}

func TestLedgerService_ReconcileUnknownWallet(t *testing.T) {
	f := newFixture(t)

	_, err := f.services.Ledger.Reconcile(f.ctx, uuid.New())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestLedgerService_ApplyCommissionDebitsWallet(t *testing.T) {
	f := newFixture(t)
	clientID, cleanerID := uuid.New(), uuid.New()
	f.store.SetCompletedJobs(cleanerID, 25)

	booking := f.confirmedBooking(t, clientID, cleanerID, 200)
	commission, err := f.repos.Commission.GetByBookingID(f.ctx, booking.ID)
	require.NoError(t, err)

	applied, err := f.services.Ledger.ApplyCommission(f.ctx, commission)
	require.NoError(t, err)
	assert.True(t, applied)

	again, err := f.services.Ledger.ApplyCommission(f.ctx, commission)
	require.NoError(t, err)
	assert.False(t, again)

	wallet, transactions, err := f.services.Ledger.Wallet(f.ctx, cleanerID, 10)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(money("-14")), wallet.Balance.String())
	require.Len(t, transactions, 1)
	assert.Equal(t, WalletTransactionCommission, transactions[0].Type)
	assert.True(t, transactions[0].Amount.Equal(money("-14.00")))
	require.NotNil(t, transactions[0].BookingID)
	assert.Equal(t, booking.ID, *transactions[0].BookingID)
	assert.Equal(t, commission.ID.String(), transactions[0].Metadata["commissionId"])

	stored, err := f.repos.Commission.GetByBookingID(f.ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, CommissionStatusApplied, stored.Status)
	require.NotNil(t, stored.AppliedAt)

	assert.Len(t, f.publisher.ofType(events.COMMISSION_APPLIED), 1)
}

var errLedgerWrite = errors.New("ledger write failed")

// failingWalletRepository moves balances normally but cannot append ledger rows, so a
// commission unit fails after the status flip and the wallet debit.
type failingWalletRepository struct {
	repositories.WalletRepository
}

func (failingWalletRepository) AppendTransaction(context.Context, *WalletTransaction) error {
	return errLedgerWrite
}

func TestLedgerService_ApplyCommissionRollsBackOnStorageFailure(t *testing.T) {
	f := newFixture(t)
	clientID, cleanerID := uuid.New(), uuid.New()
	f.store.SetCompletedJobs(cleanerID, 25)

	booking := f.confirmedBooking(t, clientID, cleanerID, 200)
	commission, err := f.repos.Commission.GetByBookingID(f.ctx, booking.ID)
	require.NoError(t, err)

	repos := f.repos
	repos.Wallet = failingWalletRepository{WalletRepository: f.repos.Wallet}
	broken := NewLedgerService(f.store, repos, f.clock, f.publisher, nil)

	applied, err := broken.ApplyCommission(f.ctx, commission)
	assert.ErrorIs(t, err, errLedgerWrite)
	assert.False(t, applied)

	stored, err := f.repos.Commission.GetByBookingID(f.ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, CommissionStatusPending, stored.Status)
	assert.Nil(t, stored.AppliedAt)

	_, err = f.repos.Wallet.Get(f.ctx, cleanerID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Empty(t, f.publisher.ofType(events.COMMISSION_APPLIED))

	applied, err = f.services.Ledger.ApplyCommission(f.ctx, stored)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = f.services.Ledger.ApplyCommission(f.ctx, stored)
	require.NoError(t, err)
	assert.False(t, applied)

	wallet, transactions, err := f.services.Ledger.Wallet(f.ctx, cleanerID, 10)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(money("-14")), wallet.Balance.String())
	assert.Len(t, transactions, 1)
}

func TestLedgerService_ApplyFreeCommissionPostsNothing(t *testing.T) {
	f := newFixture(t)
	clientID, cleanerID := uuid.New(), uuid.New()
	f.store.SetCompletedJobs(cleanerID, 19)

	booking := f.confirmedBooking(t, clientID, cleanerID, 200)
	commission, err := f.repos.Commission.GetByBookingID(f.ctx, booking.ID)
	require.NoError(t, err)
	require.True(t, commission.IsFreeJob)

	applied, err := f.services.Ledger.ApplyCommission(f.ctx, commission)
	require.NoError(t, err)
	assert.True(t, applied)

	_, err = f.repos.Wallet.Get(f.ctx, cleanerID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	transactions, err := f.repos.Wallet.ListTransactions(f.ctx, cleanerID, 10)
	require.NoError(t, err)
	assert.Empty(t, transactions)

	stored, err := f.repos.Commission.GetByBookingID(f.ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, CommissionStatusApplied, stored.Status)
}
