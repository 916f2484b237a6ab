package memory

import (
	"context"
	"sort"
	"time"

	"cleanmarket/internal/models"
	"cleanmarket/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type walletRepository struct {
	store *Store
}

func (r *walletRepository) Get(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.store.run(ctx, func(data *state) error {
		found, ok := data.wallets[ownerID]
		if !ok {
			return r.store.log.Function("GetWallet").
				ErrorWithType(types.ErrNotFound, "wallet not found", "ownerID", ownerID)
		}
		wallet = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepository) Adjust(
	ctx context.Context,
	ownerID uuid.UUID,
	delta decimal.Decimal,
	at time.Time,
) error {
	return r.store.run(ctx, func(data *state) error {
		wallet, ok := data.wallets[ownerID]
		if !ok {
			wallet = models.Wallet{OwnerID: ownerID, Balance: decimal.Zero, CreatedAt: at}
		}
		wallet.Balance = wallet.Balance.Add(delta)
		wallet.UpdatedAt = at
		data.wallets[ownerID] = wallet
		return nil
	})
}

func (r *walletRepository) Withdraw(
	ctx context.Context,
	ownerID uuid.UUID,
	amount decimal.Decimal,
	at time.Time,
) error {
	return r.store.run(ctx, func(data *state) error {
		wallet, ok := data.wallets[ownerID]
		if !ok || wallet.Balance.LessThan(amount) {
			return r.store.log.Function("Withdraw").ErrorWithType(
				types.ErrInsufficientFunds,
				"wallet balance does not cover withdrawal",
				"ownerID", ownerID,
				"amount", amount,
			)
		}
		wallet.Balance = wallet.Balance.Sub(amount)
		wallet.UpdatedAt = at
		data.wallets[ownerID] = wallet
		return nil
	})
}

func (r *walletRepository) AppendTransaction(
	ctx context.Context,
	transaction *models.WalletTransaction,
) error {
	return r.store.run(ctx, func(data *state) error {
		if transaction.IdempotencyKey != nil {
			for _, existing := range data.transactions {
				if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *transaction.IdempotencyKey {
					return r.store.log.Function("AppendTransaction").ErrorWithType(
						types.ErrConflict,
						"idempotency key already used",
						"key", *transaction.IdempotencyKey,
					)
				}
			}
		}
		stamp(&transaction.ID, &transaction.CreatedAt)
		data.transactions[transaction.ID] = *transaction
		data.txSequence = append(data.txSequence, transaction.ID)
		return nil
	})
}

func (r *walletRepository) FindByIdempotencyKey(
	ctx context.Context,
	key string,
) (*models.WalletTransaction, error) {
	var found *models.WalletTransaction
	err := r.store.run(ctx, func(data *state) error {
		for _, transaction := range data.transactions {
			if transaction.IdempotencyKey != nil && *transaction.IdempotencyKey == key {
				transaction := transaction
				found = &transaction
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *walletRepository) ListTransactions(
	ctx context.Context,
	ownerID uuid.UUID,
	limit int,
) ([]*models.WalletTransaction, error) {
	var transactions []*models.WalletTransaction
	err := r.store.run(ctx, func(data *state) error {
		for i := len(data.txSequence) - 1; i >= 0; i-- {
			transaction := data.transactions[data.txSequence[i]]
			if transaction.OwnerID == ownerID {
				transactions = append(transactions, &transaction)
			}
		}
		return nil
	})
	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.After(transactions[j].CreatedAt)
	})
	return truncate(transactions, limit), err
}

func (r *walletRepository) SumTransactions(
	ctx context.Context,
	ownerID uuid.UUID,
) (decimal.Decimal, error) {
	sum := decimal.Zero
	err := r.store.run(ctx, func(data *state) error {
		for _, transaction := range data.transactions {
			if transaction.OwnerID == ownerID {
				sum = sum.Add(transaction.Amount)
			}
		}
		return nil
	})
	return sum.Round(2), err
}

func (r *walletRepository) ListBelow(
	ctx context.Context,
	floor decimal.Decimal,
	afterOwnerID uuid.UUID,
	limit int,
) ([]*models.Wallet, error) {
	var wallets []*models.Wallet
	err := r.store.run(ctx, func(data *state) error {
		for _, wallet := range data.wallets {
			if wallet.Balance.LessThan(floor) && wallet.OwnerID.String() > afterOwnerID.String() {
				wallet := wallet
				wallets = append(wallets, &wallet)
			}
		}
		return nil
	})
	sortByID(wallets, func(w *models.Wallet) uuid.UUID { return w.OwnerID })
	return truncate(wallets, limit), err
}
