package services

import (
	"context"
	"fmt"
	"testing"

	"cleanmarket/internal/events"
	. "cleanmarket/internal/models"
	"cleanmarket/internal/repositories"
	"cleanmarket/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingService_Create(t *testing.T) {
	f := newFixture(t)
	clientID := uuid.New()

	booking, err := f.services.Booking.Create(f.ctx, CreateBookingRequest{
		ClientID:    clientID,
		ServiceID:   uuid.New(),
		ScheduledAt: testStart,
		Address:     "3 Derb Sidi Bouloukat, Marrakech",
		BasePrice:   decimal.RequireFromString("180.00"),
		AddonsTotal: decimal.RequireFromString("35.50"),
	})
	require.NoError(t, err)

	assert.Equal(t, BookingStatusRequested, booking.Status)
	assert.True(t, booking.TotalPrice.Equal(decimal.RequireFromString("215.50")))
	assert.True(t, booking.PriceConsistent())
	assert.Nil(t, booking.CleanerID)

	history, err := f.services.Booking.History(f.ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].PreviousStatus)
	assert.Equal(t, BookingStatusRequested, history[0].NewStatus)
	assert.Equal(t, clientID, history[0].ActorID)
}

func TestBookingService_CreateCleansAddress(t *testing.T) {
	f := newFixture(t)

	booking, err := f.services.Booking.Create(f.ctx, CreateBookingRequest{
		ClientID:    uuid.New(),
		ServiceID:   uuid.New(),
		ScheduledAt: testStart,
		Address:     "  12 Rue\x00 Patrice Lumumba, Rabat\xff ",
		BasePrice:   decimal.NewFromInt(120),
	})
	require.NoError(t, err)

	assert.Equal(t, "12 Rue Patrice Lumumba, Rabat", booking.Address)
}

func TestBookingService_CreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  CreateBookingRequest
	}{
		{
			name: "missing client",
			req:  CreateBookingRequest{BasePrice: decimal.NewFromInt(100)},
		},
		{
			name: "negative base price",
			req:  CreateBookingRequest{ClientID: uuid.New(), BasePrice: decimal.NewFromInt(-1)},
		},
		{
			name: "negative addons",
			req: CreateBookingRequest{
				ClientID:    uuid.New(),
				BasePrice:   decimal.NewFromInt(100),
				AddonsTotal: decimal.NewFromInt(-5),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.services.Booking.Create(f.ctx, tt.req)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestBookingService_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	clientID, cleanerID := uuid.New(), uuid.New()

	booking := f.confirmedBooking(t, clientID, cleanerID, 200)

	assert.Equal(t, BookingStatusClientConfirmed, booking.Status)
	require.NotNil(t, booking.CleanerID)
	assert.Equal(t, cleanerID, *booking.CleanerID)
	assert.EqualValues(t, 7, booking.Version)

	history, err := f.services.Booking.History(f.ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, history, 7)
	for i := 1; i < len(history); i++ {
		require.NotNil(t, history[i].PreviousStatus)
		assert.Equal(t, history[i-1].NewStatus, *history[i].PreviousStatus)
	}

	commission, err := f.repos.Commission.GetByBookingID(f.ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, CommissionStatusPending, commission.Status)
	assert.True(t, commission.IsFreeJob)
	assert.True(t, commission.Amount.IsZero())

	profile, err := f.repos.Cleaner.Get(f.ctx, cleanerID)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.CompletedJobsCount)

	published := f.publisher.ofType(events.BOOKING_TRANSITIONED)
	require.Len(t, published, 6)
	assert.Equal(t, "CLIENT_CONFIRMED", published[5].Data["to"])
}

func TestBookingService_CompletedPostsNoCommission(t *testing.T) {
	f := newFixture(t)

	booking := f.completedBooking(t, uuid.New(), uuid.New(), 200)

	_, err := f.repos.Commission.GetByBookingID(f.ctx, booking.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestBookingService_InvalidTransition(t *testing.T) {
	f := newFixture(t)
	clientID := uuid.New()
	booking := f.requestBooking(t, clientID, 200)

	_, err := f.services.Booking.Transition(f.ctx, booking.ID, admin(), BookingStatusInProgress, nil)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	stored, err := f.services.Booking.Get(f.ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, BookingStatusRequested, stored.Status)

	history, err := f.services.Booking.History(f.ctx, booking.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestBookingService_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.services.Booking.Transition(f.ctx, uuid.New(), admin(), BookingStatusCancelled, nil)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.services.Booking.History(f.ctx, uuid.New())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestBookingService_CheckOrder(t *testing.T) {
	f := newFixture(t)
	booking := f.requestBooking(t, uuid.New(), 200)
	stranger := client(uuid.New())

	// an edge missing from the table wins over a stranger driving it
	_, err := f.services.Booking.Transition(f.ctx, booking.ID, stranger, BookingStatusCompleted, nil)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	_, err = f.services.Booking.Transition(f.ctx, booking.ID, stranger, BookingStatusCancelled, nil)
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestBookingService_Forbidden(t *testing.T) {
	clientID, cleanerID := uuid.New(), uuid.New()

	tests := []struct {
		name   string
		setup  func(t *testing.T, f *fixture) *Booking
		actor  types.Actor
		target BookingStatus
	}{
		{
			name:   "another client cancels",
			setup:  func(t *testing.T, f *fixture) *Booking { return f.requestBooking(t, clientID, 200) },
			actor:  client(uuid.New()),
			target: BookingStatusCancelled,
		},
		{
			name:   "client accepts own booking",
			setup:  func(t *testing.T, f *fixture) *Booking { return f.requestBooking(t, clientID, 200) },
			actor:  client(clientID),
			target: BookingStatusAccepted,
		},
		{
			name:   "admin accepts without assigned cleaner",
			setup:  func(t *testing.T, f *fixture) *Booking { return f.requestBooking(t, clientID, 200) },
			actor:  admin(),
			target: BookingStatusAccepted,
		},
		{
			name: "unassigned cleaner starts travelling",
			setup: func(t *testing.T, f *fixture) *Booking {
				booking := f.requestBooking(t, clientID, 200)
				booking, err := f.services.Booking.Transition(f.ctx, booking.ID, cleaner(cleanerID), BookingStatusAccepted, nil)
				require.NoError(t, err)
				return booking
			},
			actor:  cleaner(uuid.New()),
			target: BookingStatusOnTheWay,
		},
		{
			name:   "system cancels",
			setup:  func(t *testing.T, f *fixture) *Booking { return f.requestBooking(t, clientID, 200) },
			actor:  types.SystemActor,
			target: BookingStatusCancelled,
		},
		{
			name:   "cleaner confirms own work",
			setup:  func(t *testing.T, f *fixture) *Booking { return f.completedBooking(t, clientID, cleanerID, 200) },
			actor:  cleaner(cleanerID),
			target: BookingStatusClientConfirmed,
		},
		{
			name: "client resolves dispute",
			setup: func(t *testing.T, f *fixture) *Booking {
				booking := f.completedBooking(t, clientID, cleanerID, 200)
				booking, err := f.services.Booking.Transition(f.ctx, booking.ID, client(clientID), BookingStatusDisputed, nil)
				require.NoError(t, err)
				return booking
			},
			actor:  client(clientID),
			target: BookingStatusResolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			booking := tt.setup(t, f)

			_, err := f.services.Booking.Transition(f.ctx, booking.ID, tt.actor, tt.target, nil)
			assert.ErrorIs(t, err, types.ErrForbidden)

			stored, err := f.services.Booking.Get(f.ctx, booking.ID)
			require.NoError(t, err)
			assert.Equal(t, booking.Status, stored.Status)
		})
	}
}

func TestBookingService_AdminAcceptsPreassigned(t *testing.T) {
	f := newFixture(t)
	cleanerID := uuid.New()

	booking, err := f.services.Booking.Create(f.ctx, CreateBookingRequest{
		ClientID:  uuid.New(),
		CleanerID: &cleanerID,
		BasePrice: decimal.NewFromInt(120),
	})
	require.NoError(t, err)

	_, err = f.services.Booking.Transition(f.ctx, booking.ID, cleaner(uuid.New()), BookingStatusAccepted, nil)
	assert.ErrorIs(t, err, types.ErrForbidden)

	accepted, err := f.services.Booking.Transition(f.ctx, booking.ID, admin(), BookingStatusAccepted, nil)
	require.NoError(t, err)
	assert.Equal(t, cleanerID, *accepted.CleanerID)
}

func TestAllowedTransitions_Exhaustive(t *testing.T) {
	expected := map[string]bool{
		"REQUESTED->ACCEPTED":         true,
		"REQUESTED->CANCELLED":        true,
		"ACCEPTED->ON_THE_WAY":        true,
		"ACCEPTED->CANCELLED":         true,
		"ON_THE_WAY->ARRIVED":         true,
		"ON_THE_WAY->CANCELLED":       true,
		"ARRIVED->IN_PROGRESS":        true,
		"ARRIVED->CANCELLED":          true,
		"IN_PROGRESS->COMPLETED":      true,
		"IN_PROGRESS->CANCELLED":      true,
		"COMPLETED->CLIENT_CONFIRMED": true,
		"COMPLETED->DISPUTED":         true,
		"COMPLETED->CANCELLED":        true,
		"CLIENT_CONFIRMED->DISPUTED":  true,
		"DISPUTED->RESOLVED":          true,
		"DISPUTED->REJECTED":          true,
		"DISPUTED->CANCELLED":         true,
	}

	for _, from := range AllBookingStatuses {
		for _, to := range AllBookingStatuses {
			key := fmt.Sprintf("%s->%s", from, to)
			assert.Equal(t, expected[key], CanTransition(from, to), key)
		}
	}

	for _, terminal := range []BookingStatus{BookingStatusCancelled, BookingStatusResolved, BookingStatusRejected} {
		assert.Empty(t, AllowedTransitions[terminal], terminal)
	}
}

func TestBookingService_CancelAfterCompletion(t *testing.T) {
	f := newFixture(t)
	clientID, cleanerID := uuid.New(), uuid.New()
	booking := f.completedBooking(t, clientID, cleanerID, 200)

	cancelled, err := f.services.Booking.Transition(f.ctx, booking.ID, client(clientID), BookingStatusCancelled, nil)
	require.NoError(t, err)
	assert.Equal(t, BookingStatusCancelled, cancelled.Status)

	_, err = f.repos.Commission.GetByBookingID(f.ctx, booking.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.services.Booking.Transition(f.ctx, booking.ID, client(clientID), BookingStatusClientConfirmed, nil)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestBookingService_CancelDispute(t *testing.T) {
	f := newFixture(t)
	clientID, cleanerID := uuid.New(), uuid.New()
	booking := f.completedBooking(t, clientID, cleanerID, 200)

	_, err := f.services.Booking.Transition(f.ctx, booking.ID, client(clientID), BookingStatusDisputed, nil)
	require.NoError(t, err)

	_, err = f.services.Booking.Transition(f.ctx, booking.ID, client(clientID), BookingStatusCancelled, nil)
	assert.ErrorIs(t, err, types.ErrForbidden)

	cancelled, err := f.services.Booking.Transition(f.ctx, booking.ID, admin(), BookingStatusCancelled, nil)
	require.NoError(t, err)
	assert.Equal(t, BookingStatusCancelled, cancelled.Status)
}

// staleBookingRepository hands out bookings one version behind the stored row, as if
// another writer had committed between our read and our write.
type staleBookingRepository struct {
	repositories.BookingRepository
}

func (r staleBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	booking, err := r.BookingRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	booking.Version--
	return booking, nil
}

func TestBookingService_ConcurrentModificationConflict(t *testing.T) {
	f := newFixture(t)
	clientID, cleanerID := uuid.New(), uuid.New()
	booking := f.completedBooking(t, clientID, cleanerID, 200)

	repos := f.repos
	repos.Booking = staleBookingRepository{BookingRepository: f.repos.Booking}
	stale := NewBookingService(f.store, repos, DefaultCommissionPolicy(), f.clock, f.publisher, nil)

	_, err := stale.Transition(f.ctx, booking.ID, client(clientID), BookingStatusClientConfirmed, nil)
	assert.ErrorIs(t, err, types.ErrConflict)

	stored, err := f.services.Booking.Get(f.ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, BookingStatusCompleted, stored.Status)

	_, err = f.repos.Commission.GetByBookingID(f.ctx, booking.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	history, err := f.services.Booking.History(f.ctx, booking.ID)
	require.NoError(t, err)
	assert.Len(t, history, 6)
}

func TestBookingService_DuplicateCommissionConflict(t *testing.T) {
	f := newFixture(t)
	clientID, cleanerID := uuid.New(), uuid.New()
	booking := f.completedBooking(t, clientID, cleanerID, 200)

	require.NoError(t, f.repos.Commission.Create(f.ctx, &Commission{
		CleanerID: cleanerID,
		BookingID: booking.ID,
		Status:    CommissionStatusPending,
	}))

	_, err := f.services.Booking.Transition(f.ctx, booking.ID, client(clientID), BookingStatusClientConfirmed, nil)
	assert.ErrorIs(t, err, types.ErrConflict)

	stored, err := f.services.Booking.Get(f.ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, BookingStatusCompleted, stored.Status)

	profile, err := f.repos.Cleaner.Get(f.ctx, cleanerID)
	if err == nil {
		assert.Equal(t, 0, profile.CompletedJobsCount)
	}
}

func TestBookingService_CommissionAfterFreeQuota(t *testing.T) {
	f := newFixture(t)
	clientID, cleanerID := uuid.New(), uuid.New()
	f.store.SetCompletedJobs(cleanerID, 25)

	booking := f.confirmedBooking(t, clientID, cleanerID, 200)

	commission, err := f.repos.Commission.GetByBookingID(f.ctx, booking.ID)
	require.NoError(t, err)
	assert.False(t, commission.IsFreeJob)
	assert.True(t, commission.Amount.Equal(decimal.RequireFromString("14.00")), commission.Amount.String())
	assert.True(t, commission.Percentage.Equal(DefaultCommissionRate))

	profile, err := f.repos.Cleaner.Get(f.ctx, cleanerID)
	require.NoError(t, err)
	assert.Equal(t, 26, profile.CompletedJobsCount)
}

func TestBookingService_CancelledNeverReopens(t *testing.T) {
	f := newFixture(t)
	clientID := uuid.New()
	booking := f.requestBooking(t, clientID, 200)

	_, err := f.services.Booking.Transition(f.ctx, booking.ID, client(clientID), BookingStatusCancelled, map[string]any{
		"reason": "changed plans",
	})
	require.NoError(t, err)

	for _, target := range AllBookingStatuses {
		_, err := f.services.Booking.Transition(f.ctx, booking.ID, admin(), target, nil)
		assert.ErrorIs(t, err, types.ErrInvalidTransition, target)
	}

	history, err := f.services.Booking.History(f.ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "changed plans", history[1].Metadata["reason"])
}
