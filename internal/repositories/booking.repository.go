package repositories

import (
	"context"
	"time"

	contextutil "cleanmarket/internal/context"
	"cleanmarket/internal/database"
	. "cleanmarket/internal/models"
	"cleanmarket/internal/types"
	"cleanmarket/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CancellationStat aggregates one cleaner's bookings inside a fraud window.
type CancellationStat struct {
	CleanerID uuid.UUID `gorm:"column:cleaner_id"`
	Total     int64     `gorm:"column:total"`
	Cancelled int64     `gorm:"column:cancelled"`
}

// ClientConcentration aggregates one client's assigned bookings inside a fraud window.
type ClientConcentration struct {
	ClientID         uuid.UUID `gorm:"column:client_id"`
	Total            int64     `gorm:"column:total"`
	DistinctCleaners int64     `gorm:"column:distinct_cleaners"`
}

type BookingRepository interface {
	Create(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	UpdateStatus(ctx context.Context, booking *Booking, expectedVersion int64) error
	AppendEvent(ctx context.Context, event *BookingEvent) error
	ListEvents(ctx context.Context, bookingID uuid.UUID) ([]*BookingEvent, error)
	ListStaleCompleted(
		ctx context.Context,
		updatedBefore time.Time,
		afterID uuid.UUID,
		limit int,
	) ([]*Booking, error)
	DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error)
	CancellationStatsByCleaner(
		ctx context.Context,
		since time.Time,
		minBookings int,
	) ([]CancellationStat, error)
	ConcentrationByClient(
		ctx context.Context,
		since time.Time,
		minBookings int,
	) ([]ClientConcentration, error)
}

type bookingRepository struct {
	db  database.DB
	log logger.Logger
}

func NewBookingRepository(db database.DB) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: logger.New("bookingRepository"),
	}
}

func (r *bookingRepository) getDB(ctx context.Context) *gorm.DB {
	return contextutil.DB(ctx, r.db.SQL)
}

func (r *bookingRepository) Create(ctx context.Context, booking *Booking) error {
	log := r.log.Function("Create")

	if err := r.getDB(ctx).Create(booking).Error; err != nil {
		return storageError(log, "failed to create booking", err, "clientID", booking.ClientID)
	}

	return nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	log := r.log.Function("GetByID")

	var booking Booking
	if err := r.getDB(ctx).First(&booking, "id = ?", id).Error; err != nil {
		return nil, storageError(log, "failed to get booking by ID", err, "id", id)
	}

	return &booking, nil
}

// UpdateStatus writes status, cleaner and updatedAt only if the row still carries
// expectedVersion. On success booking.Version is bumped to match the row.
func (r *bookingRepository) UpdateStatus(
	ctx context.Context,
	booking *Booking,
	expectedVersion int64,
) error {
	log := r.log.Function("UpdateStatus")

	result := r.getDB(ctx).
		Model(&Booking{}).
		Where("id = ? AND version = ?", booking.ID, expectedVersion).
		Updates(map[string]any{
			"status":     booking.Status,
			"cleaner_id": booking.CleanerID,
			"version":    expectedVersion + 1,
			"updated_at": booking.UpdatedAt,
		})
	if result.Error != nil {
		return storageError(log, "failed to update booking status", result.Error, "id", booking.ID)
	}

	if result.RowsAffected == 0 {
		return log.ErrorWithType(
			types.ErrConflict,
			"booking was modified concurrently",
			"id", booking.ID,
			"expectedVersion", expectedVersion,
		)
	}

	booking.Version = expectedVersion + 1
	return nil
}

func (r *bookingRepository) AppendEvent(ctx context.Context, event *BookingEvent) error {
	log := r.log.Function("AppendEvent")

	if err := r.getDB(ctx).Create(event).Error; err != nil {
		return storageError(log, "failed to append booking event", err, "bookingID", event.BookingID)
	}

	return nil
}

func (r *bookingRepository) ListEvents(
	ctx context.Context,
	bookingID uuid.UUID,
) ([]*BookingEvent, error) {
	log := r.log.Function("ListEvents")

	var events []*BookingEvent
	err := r.getDB(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, storageError(log, "failed to list booking events", err, "bookingID", bookingID)
	}

	return events, nil
}

func (r *bookingRepository) ListStaleCompleted(
	ctx context.Context,
	updatedBefore time.Time,
	afterID uuid.UUID,
	limit int,
) ([]*Booking, error) {
	log := r.log.Function("ListStaleCompleted")

	var bookings []*Booking
	err := r.getDB(ctx).
		Where("status = ? AND updated_at < ? AND id > ?", BookingStatusCompleted, updatedBefore, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, storageError(log, "failed to list stale completed bookings", err)
	}

	return bookings, nil
}

func (r *bookingRepository) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	log := r.log.Function("DeleteEventsBefore")

	result := r.getDB(ctx).Where("created_at < ?", before).Delete(&BookingEvent{})
	if result.Error != nil {
		return 0, storageError(log, "failed to delete booking events", result.Error, "before", before)
	}

	return result.RowsAffected, nil
}

func (r *bookingRepository) CancellationStatsByCleaner(
	ctx context.Context,
	since time.Time,
	minBookings int,
) ([]CancellationStat, error) {
	log := r.log.Function("CancellationStatsByCleaner")

	var stats []CancellationStat
	err := r.getDB(ctx).
		Model(&Booking{}).
		Select(
			"cleaner_id, COUNT(*) AS total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS cancelled",
			BookingStatusCancelled,
		).
		Where("cleaner_id IS NOT NULL AND created_at >= ?", since).
		Group("cleaner_id").
		Having("COUNT(*) >= ?", minBookings).
		Order("cleaner_id").
		Scan(&stats).Error
	if err != nil {
		return nil, storageError(log, "failed to aggregate cancellations", err, "since", since)
	}

	return stats, nil
}

func (r *bookingRepository) ConcentrationByClient(
	ctx context.Context,
	since time.Time,
	minBookings int,
) ([]ClientConcentration, error) {
	log := r.log.Function("ConcentrationByClient")

	var rows []ClientConcentration
	err := r.getDB(ctx).
		Model(&Booking{}).
		Select("client_id, COUNT(*) AS total, COUNT(DISTINCT cleaner_id) AS distinct_cleaners").
		Where("cleaner_id IS NOT NULL AND created_at >= ?", since).
		Group("client_id").
		Having("COUNT(*) >= ? AND COUNT(DISTINCT cleaner_id) = 1", minBookings).
		Order("client_id").
		Scan(&rows).Error
	if err != nil {
		return nil, storageError(log, "failed to aggregate client concentration", err, "since", since)
	}

	return rows, nil
}
