package memory

import (
	"context"
	"sort"
	"time"

	"cleanmarket/internal/models"
	"cleanmarket/internal/repositories"
	"cleanmarket/internal/types"

	"github.com/google/uuid"
)

type bookingRepository struct {
	store *Store
}

func stamp(id *uuid.UUID, created *time.Time) {
	if *id == uuid.Nil {
		*id = models.NewID()
	}
	if created.IsZero() {
		*created = time.Now().UTC()
	}
}

func (r *bookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	return r.store.run(ctx, func(data *state) error {
		stamp(&booking.ID, &booking.CreatedAt)
		if booking.UpdatedAt.IsZero() {
			booking.UpdatedAt = booking.CreatedAt
		}
		if booking.Version == 0 {
			booking.Version = 1
		}
		if _, exists := data.bookings[booking.ID]; exists {
			return r.store.log.Function("CreateBooking").
				ErrorWithType(types.ErrConflict, "booking already exists", "id", booking.ID)
		}
		data.bookings[booking.ID] = *booking
		return nil
	})
}

func (r *bookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.store.run(ctx, func(data *state) error {
		found, ok := data.bookings[id]
		if !ok {
			return r.store.log.Function("GetBooking").
				ErrorWithType(types.ErrNotFound, "booking not found", "id", id)
		}
		booking = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) UpdateStatus(
	ctx context.Context,
	booking *models.Booking,
	expectedVersion int64,
) error {
	return r.store.run(ctx, func(data *state) error {
		current, ok := data.bookings[booking.ID]
		if !ok {
			return r.store.log.Function("UpdateBookingStatus").
				ErrorWithType(types.ErrNotFound, "booking not found", "id", booking.ID)
		}
		if current.Version != expectedVersion {
			return r.store.log.Function("UpdateBookingStatus").ErrorWithType(
				types.ErrConflict,
				"booking was modified concurrently",
				"id", booking.ID,
				"expectedVersion", expectedVersion,
			)
		}

		current.Status = booking.Status
		current.CleanerID = booking.CleanerID
		current.UpdatedAt = booking.UpdatedAt
		current.Version = expectedVersion + 1
		data.bookings[booking.ID] = current

		booking.Version = current.Version
		return nil
	})
}

func (r *bookingRepository) AppendEvent(ctx context.Context, event *models.BookingEvent) error {
	return r.store.run(ctx, func(data *state) error {
		stamp(&event.ID, &event.CreatedAt)
		data.events[event.ID] = *event
		data.eventSequence = append(data.eventSequence, event.ID)
		return nil
	})
}

func (r *bookingRepository) ListEvents(
	ctx context.Context,
	bookingID uuid.UUID,
) ([]*models.BookingEvent, error) {
	var events []*models.BookingEvent
	err := r.store.run(ctx, func(data *state) error {
		for _, id := range data.eventSequence {
			event, ok := data.events[id]
			if ok && event.BookingID == bookingID {
				events = append(events, &event)
			}
		}
		return nil
	})
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, err
}

func (r *bookingRepository) ListStaleCompleted(
	ctx context.Context,
	updatedBefore time.Time,
	afterID uuid.UUID,
	limit int,
) ([]*models.Booking, error) {
	var bookings []*models.Booking
	err := r.store.run(ctx, func(data *state) error {
		for _, booking := range data.bookings {
			if booking.Status == models.BookingStatusCompleted &&
				booking.UpdatedAt.Before(updatedBefore) &&
				booking.ID.String() > afterID.String() {
				booking := booking
				bookings = append(bookings, &booking)
			}
		}
		return nil
	})
	sortByID(bookings, func(b *models.Booking) uuid.UUID { return b.ID })
	return truncate(bookings, limit), err
}

func (r *bookingRepository) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	err := r.store.run(ctx, func(data *state) error {
		kept := data.eventSequence[:0:0]
		for _, id := range data.eventSequence {
			if data.events[id].CreatedAt.Before(before) {
				delete(data.events, id)
				deleted++
				continue
			}
			kept = append(kept, id)
		}
		data.eventSequence = kept
		return nil
	})
	return deleted, err
}

func (r *bookingRepository) CancellationStatsByCleaner(
	ctx context.Context,
	since time.Time,
	minBookings int,
) ([]repositories.CancellationStat, error) {
	byCleaner := map[uuid.UUID]*repositories.CancellationStat{}
	err := r.store.run(ctx, func(data *state) error {
		for _, booking := range data.bookings {
			if booking.CleanerID == nil || booking.CreatedAt.Before(since) {
				continue
			}
			stat, ok := byCleaner[*booking.CleanerID]
			if !ok {
				stat = &repositories.CancellationStat{CleanerID: *booking.CleanerID}
				byCleaner[*booking.CleanerID] = stat
			}
			stat.Total++
			if booking.Status == models.BookingStatusCancelled {
				stat.Cancelled++
			}
		}
		return nil
	})

	var stats []repositories.CancellationStat
	for _, stat := range byCleaner {
		if stat.Total >= int64(minBookings) {
			stats = append(stats, *stat)
		}
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].CleanerID.String() < stats[j].CleanerID.String()
	})
	return stats, err
}

func (r *bookingRepository) ConcentrationByClient(
	ctx context.Context,
	since time.Time,
	minBookings int,
) ([]repositories.ClientConcentration, error) {
	totals := map[uuid.UUID]int64{}
	cleaners := map[uuid.UUID]map[uuid.UUID]struct{}{}
	err := r.store.run(ctx, func(data *state) error {
		for _, booking := range data.bookings {
			if booking.CleanerID == nil || booking.CreatedAt.Before(since) {
				continue
			}
			totals[booking.ClientID]++
			if cleaners[booking.ClientID] == nil {
				cleaners[booking.ClientID] = map[uuid.UUID]struct{}{}
			}
			cleaners[booking.ClientID][*booking.CleanerID] = struct{}{}
		}
		return nil
	})

	var rows []repositories.ClientConcentration
	for clientID, total := range totals {
		if total >= int64(minBookings) && len(cleaners[clientID]) == 1 {
			rows = append(rows, repositories.ClientConcentration{
				ClientID:         clientID,
				Total:            total,
				DistinctCleaners: 1,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ClientID.String() < rows[j].ClientID.String()
	})
	return rows, err
}

func sortByID[T any](items []T, id func(T) uuid.UUID) {
	sort.Slice(items, func(i, j int) bool {
		return id(items[i]).String() < id(items[j]).String()
	})
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
