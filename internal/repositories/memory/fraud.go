package memory

import (
	"context"
	"time"

	"cleanmarket/internal/models"

	"github.com/google/uuid"
)

type fraudFlagRepository struct {
	store *Store
}

func (r *fraudFlagRepository) Create(ctx context.Context, flag *models.FraudFlag) error {
	return r.store.run(ctx, func(data *state) error {
		stamp(&flag.ID, &flag.CreatedAt)
		data.flags[flag.ID] = *flag
		data.flagSequence = append(data.flagSequence, flag.ID)
		return nil
	})
}

func (r *fraudFlagRepository) ExistsSince(
	ctx context.Context,
	userID uuid.UUID,
	flagType models.FraudFlagType,
	since time.Time,
) (bool, error) {
	exists := false
	err := r.store.run(ctx, func(data *state) error {
		for _, flag := range data.flags {
			if flag.UserID == userID && flag.Type == flagType && !flag.CreatedAt.Before(since) {
				exists = true
				return nil
			}
		}
		return nil
	})
	return exists, err
}

func (r *fraudFlagRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.FraudFlag, error) {
	var flags []*models.FraudFlag
	err := r.store.run(ctx, func(data *state) error {
		for _, id := range data.flagSequence {
			flag := data.flags[id]
			if flag.UserID == userID {
				flags = append(flags, &flag)
			}
		}
		return nil
	})
	return flags, err
}

type debtThresholdRepository struct {
	store *Store
}

func (r *debtThresholdRepository) Get(
	ctx context.Context,
	cleanerID uuid.UUID,
) (*models.DebtThreshold, error) {
	var found *models.DebtThreshold
	err := r.store.run(ctx, func(data *state) error {
		if threshold, ok := data.thresholds[cleanerID]; ok {
			found = &threshold
		}
		return nil
	})
	return found, err
}

func (r *debtThresholdRepository) Upsert(ctx context.Context, threshold *models.DebtThreshold) error {
	return r.store.run(ctx, func(data *state) error {
		now := time.Now().UTC()
		if existing, ok := data.thresholds[threshold.CleanerID]; ok {
			threshold.CreatedAt = existing.CreatedAt
		} else if threshold.CreatedAt.IsZero() {
			threshold.CreatedAt = now
		}
		if threshold.UpdatedAt.IsZero() {
			threshold.UpdatedAt = now
		}
		data.thresholds[threshold.CleanerID] = *threshold
		return nil
	})
}
