package memory

import (
	"context"
	"time"

	"cleanmarket/internal/models"
	"cleanmarket/internal/types"

	"github.com/google/uuid"
)

type commissionRepository struct {
	store *Store
}

func (r *commissionRepository) Create(ctx context.Context, commission *models.Commission) error {
	return r.store.run(ctx, func(data *state) error {
		for _, existing := range data.commissions {
			if existing.BookingID == commission.BookingID {
				return r.store.log.Function("CreateCommission").ErrorWithType(
					types.ErrConflict,
					"commission already exists for booking",
					"bookingID", commission.BookingID,
				)
			}
		}
		stamp(&commission.ID, &commission.CreatedAt)
		if commission.UpdatedAt.IsZero() {
			commission.UpdatedAt = commission.CreatedAt
		}
		data.commissions[commission.ID] = *commission
		return nil
	})
}

func (r *commissionRepository) GetByBookingID(
	ctx context.Context,
	bookingID uuid.UUID,
) (*models.Commission, error) {
	var found *models.Commission
	err := r.store.run(ctx, func(data *state) error {
		for _, commission := range data.commissions {
			if commission.BookingID == bookingID {
				commission := commission
				found = &commission
				return nil
			}
		}
		return r.store.log.Function("GetCommission").
			ErrorWithType(types.ErrNotFound, "commission not found", "bookingID", bookingID)
	})
	return found, err
}

func (r *commissionRepository) ListPending(
	ctx context.Context,
	afterID uuid.UUID,
	limit int,
) ([]*models.Commission, error) {
	var commissions []*models.Commission
	err := r.store.run(ctx, func(data *state) error {
		for _, commission := range data.commissions {
			if commission.Status == models.CommissionStatusPending &&
				commission.ID.String() > afterID.String() {
				commission := commission
				commissions = append(commissions, &commission)
			}
		}
		return nil
	})
	sortByID(commissions, func(c *models.Commission) uuid.UUID { return c.ID })
	return truncate(commissions, limit), err
}

func (r *commissionRepository) MarkApplied(
	ctx context.Context,
	id uuid.UUID,
	at time.Time,
) (bool, error) {
	flipped := false
	err := r.store.run(ctx, func(data *state) error {
		commission, ok := data.commissions[id]
		if !ok || commission.Status != models.CommissionStatusPending {
			return nil
		}
		commission.Status = models.CommissionStatusApplied
		commission.AppliedAt = &at
		commission.UpdatedAt = at
		data.commissions[id] = commission
		flipped = true
		return nil
	})
	return flipped, err
}
