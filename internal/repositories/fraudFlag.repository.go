package repositories

import (
	"context"
	"time"

	contextutil "cleanmarket/internal/context"
	"cleanmarket/internal/database"
	. "cleanmarket/internal/models"
	"cleanmarket/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FraudFlagRepository interface {
	Create(ctx context.Context, flag *FraudFlag) error
	ExistsSince(
		ctx context.Context,
		userID uuid.UUID,
		flagType FraudFlagType,
		since time.Time,
	) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*FraudFlag, error)
}

type fraudFlagRepository struct {
	db  database.DB
	log logger.Logger
}

func NewFraudFlagRepository(db database.DB) FraudFlagRepository {
	return &fraudFlagRepository{
		db:  db,
		log: logger.New("fraudFlagRepository"),
	}
}

func (r *fraudFlagRepository) getDB(ctx context.Context) *gorm.DB {
	return contextutil.DB(ctx, r.db.SQL)
}

func (r *fraudFlagRepository) Create(ctx context.Context, flag *FraudFlag) error {
	log := r.log.Function("Create")

	if err := r.getDB(ctx).Create(flag).Error; err != nil {
		return storageError(log, "failed to create fraud flag", err, "userID", flag.UserID, "type", flag.Type)
	}

	return nil
}

func (r *fraudFlagRepository) ExistsSince(
	ctx context.Context,
	userID uuid.UUID,
	flagType FraudFlagType,
	since time.Time,
) (bool, error) {
	log := r.log.Function("ExistsSince")

	var count int64
	err := r.getDB(ctx).
		Model(&FraudFlag{}).
		Where("user_id = ? AND type = ? AND created_at >= ?", userID, flagType, since).
		Count(&count).Error
	if err != nil {
		return false, storageError(log, "failed to look up recent flags", err, "userID", userID)
	}

	return count > 0, nil
}

func (r *fraudFlagRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*FraudFlag, error) {
	log := r.log.Function("ListByUser")

	var flags []*FraudFlag
	err := r.getDB(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&flags).Error
	if err != nil {
		return nil, storageError(log, "failed to list fraud flags", err, "userID", userID)
	}

	return flags, nil
}
