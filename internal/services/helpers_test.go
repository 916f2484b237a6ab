package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"cleanmarket/config"
	"cleanmarket/internal/events"
	"cleanmarket/internal/metrics"
	. "cleanmarket/internal/models"
	"cleanmarket/internal/repositories"
	"cleanmarket/internal/repositories/memory"
	"cleanmarket/internal/types"

	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, channel events.Channel, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	event.Channel = channel
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) ofType(messageType events.MessageType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var matched []events.Event
	for _, event := range p.events {
		if event.Type == messageType {
			matched = append(matched, event)
		}
	}
	return matched
}

type fixture struct {
	ctx       context.Context
	store     *memory.Store
	repos     repositories.Repository
	clock     *testclock.Clock
	publisher *recordingPublisher
	services  Service
}

func testConfig() config.Config {
	return config.Config{
		CommissionRate:                0.07,
		CommissionFreeQuota:           20,
		AutoConfirmAfterHours:         48,
		EventRetentionDays:            90,
		DebtWatchFloor:                -100,
		DefaultDebtThreshold:          -200,
		FraudWindowDays:               30,
		FraudCancellationMinBookings:  5,
		FraudCancellationRatio:        0.30,
		FraudConcentrationMinBookings: 10,
		JobBatchSize:                  500,
		CommissionWorkers:             4,
	}
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithConfig(t, testConfig())
}

func newFixtureWithConfig(t *testing.T, cfg config.Config) *fixture {
	t.Helper()

	store := memory.New()
	clk := testclock.NewClock(testStart)
	publisher := &recordingPublisher{}

	svc := NewWithDependencies(Dependencies{
		Transactor: store,
		Repos:      store.Repository(),
		Clock:      clk,
		Events:     publisher,
		Metrics:    metrics.NewCollector(),
	}, cfg)

	return &fixture{
		ctx:       context.Background(),
		store:     store,
		repos:     store.Repository(),
		clock:     clk,
		publisher: publisher,
		services:  svc,
	}
}

func client(id uuid.UUID) types.Actor  { return types.Actor{ID: id, Role: types.RoleClient} }
func cleaner(id uuid.UUID) types.Actor { return types.Actor{ID: id, Role: types.RoleCleaner} }
func admin() types.Actor               { return types.Actor{ID: uuid.New(), Role: types.RoleAdmin} }

func (f *fixture) requestBooking(t *testing.T, clientID uuid.UUID, price int64) *Booking {
	t.Helper()

	booking, err := f.services.Booking.Create(f.ctx, CreateBookingRequest{
		ClientID:    clientID,
		ServiceID:   uuid.New(),
		ScheduledAt: f.clock.Now().Add(24 * time.Hour),
		Address:     "7 Avenue Hassan II, Casablanca",
		BasePrice:   decimal.NewFromInt(price),
		AddonsTotal: decimal.Zero,
	})
	require.NoError(t, err)
	return booking
}

// completedBooking walks a fresh booking up to COMPLETED with cleanerID doing the work.
func (f *fixture) completedBooking(t *testing.T, clientID, cleanerID uuid.UUID, price int64) *Booking {
	t.Helper()

	booking := f.requestBooking(t, clientID, price)
	for _, status := range []BookingStatus{
		BookingStatusAccepted,
		BookingStatusOnTheWay,
		BookingStatusArrived,
		BookingStatusInProgress,
		BookingStatusCompleted,
	} {
		var err error
		booking, err = f.services.Booking.Transition(f.ctx, booking.ID, cleaner(cleanerID), status, nil)
		require.NoError(t, err)
	}
	return booking
}

func (f *fixture) confirmedBooking(t *testing.T, clientID, cleanerID uuid.UUID, price int64) *Booking {
	t.Helper()

	booking := f.completedBooking(t, clientID, cleanerID, price)
	booking, err := f.services.Booking.Transition(
		f.ctx,
		booking.ID,
		client(clientID),
		BookingStatusClientConfirmed,
		nil,
	)
	require.NoError(t, err)
	return booking
}

// seedBooking stores a booking directly, bypassing the state machine.
func (f *fixture) seedBooking(
	t *testing.T,
	clientID uuid.UUID,
	cleanerID *uuid.UUID,
	status BookingStatus,
) *Booking {
	t.Helper()

	now := f.clock.Now()
	booking := &Booking{
		BaseUUIDModel: BaseUUIDModel{CreatedAt: now, UpdatedAt: now},
		ClientID:      clientID,
		CleanerID:     cleanerID,
		ServiceID:     uuid.New(),
		ScheduledAt:   now,
		BasePrice:     decimal.NewFromInt(150),
		AddonsTotal:   decimal.Zero,
		TotalPrice:    decimal.NewFromInt(150),
		Status:        status,
		Version:       1,
	}
	require.NoError(t, f.repos.Booking.Create(f.ctx, booking))
	return booking
}
