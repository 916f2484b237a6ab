package repositories

import (
	"context"
	"errors"
	"time"

	contextutil "cleanmarket/internal/context"
	"cleanmarket/internal/database"
	. "cleanmarket/internal/models"
	"cleanmarket/internal/types"
	"cleanmarket/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletRepository interface {
	Get(ctx context.Context, ownerID uuid.UUID) (*Wallet, error)
	// Adjust adds delta to the balance in a single statement, creating the wallet on
	// first use. The balance may go negative.
	Adjust(ctx context.Context, ownerID uuid.UUID, delta decimal.Decimal, at time.Time) error
	// Withdraw subtracts amount only if the balance stays at or above zero.
	Withdraw(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal, at time.Time) error
	AppendTransaction(ctx context.Context, transaction *WalletTransaction) error
	FindByIdempotencyKey(ctx context.Context, key string) (*WalletTransaction, error)
	ListTransactions(ctx context.Context, ownerID uuid.UUID, limit int) ([]*WalletTransaction, error)
	SumTransactions(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error)
	ListBelow(
		ctx context.Context,
		floor decimal.Decimal,
		afterOwnerID uuid.UUID,
		limit int,
	) ([]*Wallet, error)
}

type walletRepository struct {
	db  database.DB
	log logger.Logger
}

func NewWalletRepository(db database.DB) WalletRepository {
	return &walletRepository{
		db:  db,
		log: logger.New("walletRepository"),
	}
}

func (r *walletRepository) getDB(ctx context.Context) *gorm.DB {
	return contextutil.DB(ctx, r.db.SQL)
}

func (r *walletRepository) Get(ctx context.Context, ownerID uuid.UUID) (*Wallet, error) {
	log := r.log.Function("Get")

	var wallet Wallet
	if err := r.getDB(ctx).First(&wallet, "owner_id = ?", ownerID).Error; err != nil {
		return nil, storageError(log, "failed to get wallet", err, "ownerID", ownerID)
	}

	return &wallet, nil
}

func (r *walletRepository) ensure(ctx context.Context, ownerID uuid.UUID, at time.Time) error {
	return r.getDB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&Wallet{
		OwnerID:   ownerID,
		Balance:   decimal.Zero,
		CreatedAt: at,
		UpdatedAt: at,
	}).Error
}

func (r *walletRepository) Adjust(
	ctx context.Context,
	ownerID uuid.UUID,
	delta decimal.Decimal,
	at time.Time,
) error {
	log := r.log.Function("Adjust")

	if err := r.ensure(ctx, ownerID, at); err != nil {
		return storageError(log, "failed to ensure wallet", err, "ownerID", ownerID)
	}

	result := r.getDB(ctx).
		Model(&Wallet{}).
		Where("owner_id = ?", ownerID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": at,
		})
	if result.Error != nil {
		return storageError(log, "failed to adjust wallet balance", result.Error, "ownerID", ownerID)
	}

	return nil
}

func (r *walletRepository) Withdraw(
	ctx context.Context,
	ownerID uuid.UUID,
	amount decimal.Decimal,
	at time.Time,
) error {
	log := r.log.Function("Withdraw")

	result := r.getDB(ctx).
		Model(&Wallet{}).
		Where("owner_id = ? AND balance >= ?", ownerID, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": at,
		})
	if result.Error != nil {
		return storageError(log, "failed to withdraw from wallet", result.Error, "ownerID", ownerID)
	}
	if result.RowsAffected == 0 {
		return log.ErrorWithType(
			types.ErrInsufficientFunds,
			"wallet balance does not cover withdrawal",
			"ownerID", ownerID,
			"amount", amount,
		)
	}

	return nil
}

func (r *walletRepository) AppendTransaction(
	ctx context.Context,
	transaction *WalletTransaction,
) error {
	log := r.log.Function("AppendTransaction")

	if err := r.getDB(ctx).Create(transaction).Error; err != nil {
		return storageError(
			log,
			"failed to append wallet transaction",
			err,
			"ownerID", transaction.OwnerID,
			"type", transaction.Type,
		)
	}

	return nil
}

func (r *walletRepository) FindByIdempotencyKey(
	ctx context.Context,
	key string,
) (*WalletTransaction, error) {
	log := r.log.Function("FindByIdempotencyKey")

	var transaction WalletTransaction
	if err := r.getDB(ctx).First(&transaction, "idempotency_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageError(log, "failed to find transaction by idempotency key", err, "key", key)
	}

	return &transaction, nil
}

func (r *walletRepository) ListTransactions(
	ctx context.Context,
	ownerID uuid.UUID,
	limit int,
) ([]*WalletTransaction, error) {
	log := r.log.Function("ListTransactions")

	var transactions []*WalletTransaction
	err := r.getDB(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&transactions).Error
	if err != nil {
		return nil, storageError(log, "failed to list wallet transactions", err, "ownerID", ownerID)
	}

	return transactions, nil
}

func (r *walletRepository) SumTransactions(
	ctx context.Context,
	ownerID uuid.UUID,
) (decimal.Decimal, error) {
	log := r.log.Function("SumTransactions")

	var sum decimal.NullDecimal
	err := r.getDB(ctx).
		Model(&WalletTransaction{}).
		Select("SUM(amount)").
		Where("owner_id = ?", ownerID).
		Row().
		Scan(&sum)
	if err != nil {
		return decimal.Zero, storageError(log, "failed to sum wallet transactions", err, "ownerID", ownerID)
	}

	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal.Round(2), nil
}

func (r *walletRepository) ListBelow(
	ctx context.Context,
	floor decimal.Decimal,
	afterOwnerID uuid.UUID,
	limit int,
) ([]*Wallet, error) {
	log := r.log.Function("ListBelow")

	var wallets []*Wallet
	err := r.getDB(ctx).
		Where("balance < ? AND owner_id > ?", floor, afterOwnerID).
		Order("owner_id ASC").
		Limit(limit).
		Find(&wallets).Error
	if err != nil {
		return nil, storageError(log, "failed to list wallets below floor", err, "floor", floor)
	}

	return wallets, nil
}
