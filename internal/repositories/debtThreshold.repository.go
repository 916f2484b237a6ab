package repositories

import (
	"context"
	"errors"

	contextutil "cleanmarket/internal/context"
	"cleanmarket/internal/database"
	. "cleanmarket/internal/models"
	"cleanmarket/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DebtThresholdRepository interface {
	// Get returns nil without error when the cleaner has no override.
	Get(ctx context.Context, cleanerID uuid.UUID) (*DebtThreshold, error)
	Upsert(ctx context.Context, threshold *DebtThreshold) error
}

type debtThresholdRepository struct {
	db  database.DB
	log logger.Logger
}

func NewDebtThresholdRepository(db database.DB) DebtThresholdRepository {
	return &debtThresholdRepository{
		db:  db,
		log: logger.New("debtThresholdRepository"),
	}
}

func (r *debtThresholdRepository) getDB(ctx context.Context) *gorm.DB {
	return contextutil.DB(ctx, r.db.SQL)
}

func (r *debtThresholdRepository) Get(
	ctx context.Context,
	cleanerID uuid.UUID,
) (*DebtThreshold, error) {
	log := r.log.Function("Get")

	var threshold DebtThreshold
	if err := r.getDB(ctx).First(&threshold, "cleaner_id = ?", cleanerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageError(log, "failed to get debt threshold", err, "cleanerID", cleanerID)
	}

	return &threshold, nil
}

func (r *debtThresholdRepository) Upsert(ctx context.Context, threshold *DebtThreshold) error {
	log := r.log.Function("Upsert")

	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cleaner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"threshold", "updated_at"}),
	}).Create(threshold).Error
	if err != nil {
		return storageError(log, "failed to upsert debt threshold", err, "cleanerID", threshold.CleanerID)
	}

	return nil
}
