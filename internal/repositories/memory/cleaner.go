package memory

import (
	"context"
	"time"

	"cleanmarket/internal/models"
	"cleanmarket/internal/types"

	"github.com/google/uuid"
)

type cleanerRepository struct {
	store *Store
}

func (r *cleanerRepository) Get(ctx context.Context, cleanerID uuid.UUID) (*models.CleanerProfile, error) {
	var profile models.CleanerProfile
	err := r.store.run(ctx, func(data *state) error {
		found, ok := data.profiles[cleanerID]
		if !ok {
			return r.store.log.Function("GetCleanerProfile").
				ErrorWithType(types.ErrNotFound, "cleaner profile not found", "cleanerID", cleanerID)
		}
		profile = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// LockProfile relies on unit serialization for exclusivity.
func (r *cleanerRepository) LockProfile(
	ctx context.Context,
	cleanerID uuid.UUID,
) (*models.CleanerProfile, error) {
	var profile models.CleanerProfile
	err := r.store.run(ctx, func(data *state) error {
		found, ok := data.profiles[cleanerID]
		if !ok {
			now := time.Now().UTC()
			found = models.CleanerProfile{CleanerID: cleanerID, CreatedAt: now, UpdatedAt: now}
			data.profiles[cleanerID] = found
		}
		profile = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *cleanerRepository) IncrementCompletedJobs(
	ctx context.Context,
	cleanerID uuid.UUID,
	at time.Time,
) error {
	return r.store.run(ctx, func(data *state) error {
		profile, ok := data.profiles[cleanerID]
		if !ok {
			return r.store.log.Function("IncrementCompletedJobs").
				ErrorWithType(types.ErrNotFound, "cleaner profile missing", "cleanerID", cleanerID)
		}
		profile.CompletedJobsCount++
		profile.UpdatedAt = at
		data.profiles[cleanerID] = profile
		return nil
	})
}

// SetCompletedJobs seeds a profile's counter.
func (s *Store) SetCompletedJobs(cleanerID uuid.UUID, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	profile, ok := s.data.profiles[cleanerID]
	if !ok {
		profile = models.CleanerProfile{CleanerID: cleanerID, CreatedAt: now}
	}
	profile.CompletedJobsCount = count
	profile.UpdatedAt = now
	s.data.profiles[cleanerID] = profile
}
