package repositories

import (
	"context"
	"errors"

	"cleanmarket/internal/database"
	"cleanmarket/internal/types"
	"cleanmarket/pkg/logger"

	"gorm.io/gorm"
)

// Transactor runs fn as one atomic unit. Repositories called with the ctx handed to fn
// join the unit; nested Execute calls join the outer unit instead of opening a new one.
type Transactor interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

type Repository struct {
	Booking       BookingRepository
	Cleaner       CleanerRepository
	Wallet        WalletRepository
	Commission    CommissionRepository
	FraudFlag     FraudFlagRepository
	DebtThreshold DebtThresholdRepository
}

func New(db database.DB) Repository {
	return Repository{
		Booking:       NewBookingRepository(db),
		Cleaner:       NewCleanerRepository(db),
		Wallet:        NewWalletRepository(db),
		Commission:    NewCommissionRepository(db),
		FraudFlag:     NewFraudFlagRepository(db),
		DebtThreshold: NewDebtThresholdRepository(db),
	}
}

// storageError classifies a gorm failure. Duplicate keys are conflicts, a missing row is
// not found, everything else is a persistence failure.
func storageError(log logger.Logger, msg string, err error, args ...any) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return log.ErrWithType(types.ErrConflict, msg, err, args...)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return log.ErrWithType(types.ErrNotFound, msg, err, args...)
	default:
		return log.ErrWithType(types.ErrPersistence, msg, err, args...)
	}
}
