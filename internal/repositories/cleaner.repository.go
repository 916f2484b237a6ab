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
	"gorm.io/gorm/clause"
)

type CleanerRepository interface {
	Get(ctx context.Context, cleanerID uuid.UUID) (*CleanerProfile, error)
	// LockProfile creates the profile if needed and row-locks it until the surrounding
	// unit ends. Must be called inside Transactor.Execute.
	LockProfile(ctx context.Context, cleanerID uuid.UUID) (*CleanerProfile, error)
	IncrementCompletedJobs(ctx context.Context, cleanerID uuid.UUID, at time.Time) error
}

type cleanerRepository struct {
	db  database.DB
	log logger.Logger
}

func NewCleanerRepository(db database.DB) CleanerRepository {
	return &cleanerRepository{
		db:  db,
		log: logger.New("cleanerRepository"),
	}
}

func (r *cleanerRepository) getDB(ctx context.Context) *gorm.DB {
	return contextutil.DB(ctx, r.db.SQL)
}

func (r *cleanerRepository) Get(ctx context.Context, cleanerID uuid.UUID) (*CleanerProfile, error) {
	log := r.log.Function("Get")

	var profile CleanerProfile
	if err := r.getDB(ctx).First(&profile, "cleaner_id = ?", cleanerID).Error; err != nil {
		return nil, storageError(log, "failed to get cleaner profile", err, "cleanerID", cleanerID)
	}

	return &profile, nil
}

func (r *cleanerRepository) LockProfile(
	ctx context.Context,
	cleanerID uuid.UUID,
) (*CleanerProfile, error) {
	log := r.log.Function("LockProfile")
	db := r.getDB(ctx)

	err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&CleanerProfile{CleanerID: cleanerID}).Error
	if err != nil {
		return nil, storageError(log, "failed to ensure cleaner profile", err, "cleanerID", cleanerID)
	}

	var profile CleanerProfile
	err = db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&profile, "cleaner_id = ?", cleanerID).Error
	if err != nil {
		return nil, storageError(log, "failed to lock cleaner profile", err, "cleanerID", cleanerID)
	}

	return &profile, nil
}

func (r *cleanerRepository) IncrementCompletedJobs(
	ctx context.Context,
	cleanerID uuid.UUID,
	at time.Time,
) error {
	log := r.log.Function("IncrementCompletedJobs")

	result := r.getDB(ctx).
		Model(&CleanerProfile{}).
		Where("cleaner_id = ?", cleanerID).
		Updates(map[string]any{
			"completed_jobs_count": gorm.Expr("completed_jobs_count + 1"),
			"updated_at":           at,
		})
	if result.Error != nil {
		return storageError(log, "failed to increment completed jobs", result.Error, "cleanerID", cleanerID)
	}
	if result.RowsAffected == 0 {
		return storageError(log, "cleaner profile missing", gorm.ErrRecordNotFound, "cleanerID", cleanerID)
	}

	return nil
}
