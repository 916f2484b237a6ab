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

type CommissionRepository interface {
	Create(ctx context.Context, commission *Commission) error
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*Commission, error)
	ListPending(ctx context.Context, afterID uuid.UUID, limit int) ([]*Commission, error)
	// MarkApplied flips PENDING to APPLIED and reports whether this call did the flip.
	MarkApplied(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type commissionRepository struct {
	db  database.DB
	log logger.Logger
}

func NewCommissionRepository(db database.DB) CommissionRepository {
	return &commissionRepository{
		db:  db,
		log: logger.New("commissionRepository"),
	}
}

func (r *commissionRepository) getDB(ctx context.Context) *gorm.DB {
	return contextutil.DB(ctx, r.db.SQL)
}

func (r *commissionRepository) Create(ctx context.Context, commission *Commission) error {
	log := r.log.Function("Create")

	if err := r.getDB(ctx).Create(commission).Error; err != nil {
		return storageError(log, "failed to create commission", err, "bookingID", commission.BookingID)
	}

	return nil
}

func (r *commissionRepository) GetByBookingID(
	ctx context.Context,
	bookingID uuid.UUID,
) (*Commission, error) {
	log := r.log.Function("GetByBookingID")

	var commission Commission
	if err := r.getDB(ctx).First(&commission, "booking_id = ?", bookingID).Error; err != nil {
		return nil, storageError(log, "failed to get commission", err, "bookingID", bookingID)
	}

	return &commission, nil
}

func (r *commissionRepository) ListPending(
	ctx context.Context,
	afterID uuid.UUID,
	limit int,
) ([]*Commission, error) {
	log := r.log.Function("ListPending")

	var commissions []*Commission
	err := r.getDB(ctx).
		Where("status = ? AND id > ?", CommissionStatusPending, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&commissions).Error
	if err != nil {
		return nil, storageError(log, "failed to list pending commissions", err)
	}

	return commissions, nil
}

func (r *commissionRepository) MarkApplied(
	ctx context.Context,
	id uuid.UUID,
	at time.Time,
) (bool, error) {
	log := r.log.Function("MarkApplied")

	result := r.getDB(ctx).
		Model(&Commission{}).
		Where("id = ? AND status = ?", id, CommissionStatusPending).
		Updates(map[string]any{
			"status":     CommissionStatusApplied,
			"applied_at": at,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, storageError(log, "failed to mark commission applied", result.Error, "id", id)
	}

	return result.RowsAffected == 1, nil
}
