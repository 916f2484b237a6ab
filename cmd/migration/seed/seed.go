package seed

import (
	"context"
	"time"

	"cleanmarket/config"
	"cleanmarket/internal/database"
	. "cleanmarket/internal/models"
	"cleanmarket/internal/services"
	"cleanmarket/internal/types"
	"cleanmarket/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fixed ids so local tooling can address the seeded actors.
var (
	AdminID   = uuid.MustParse("0195a000-0000-7000-8000-000000000001")
	ClientID  = uuid.MustParse("0195a000-0000-7000-8000-000000000002")
	CleanerID = uuid.MustParse("0195a000-0000-7000-8000-000000000003")
)

// Seed creates development data through the services so every row obeys the same
// rules as production traffic.
func Seed(db database.DB, config config.Config, log logger.Logger) error {
	log = log.Function("seed")
	log.Info("Seeding development data")

	ctx := context.Background()
	svc := services.New(db, config, nil, nil)
	client := types.Actor{ID: ClientID, Role: types.RoleClient}
	cleaner := types.Actor{ID: CleanerID, Role: types.RoleCleaner}

	_, _, err := svc.Ledger.Recharge(ctx, services.RechargeRequest{
		OwnerID:        CleanerID,
		Amount:         decimal.NewFromInt(500),
		IdempotencyKey: "seed-recharge-1",
		Metadata:       map[string]any{"source": "seed"},
	})
	if err != nil {
		return log.Err("failed to seed wallet", err)
	}

	bookings := []struct {
		address string
		price   int64
		walk    []BookingStatus
	}{
		{address: "14 Rue Souika, Rabat", price: 180},
		{
			address: "22 Boulevard Zerktouni, Casablanca",
			price:   260,
			walk:    []BookingStatus{BookingStatusAccepted, BookingStatusOnTheWay},
		},
		{
			address: "5 Derb Dabachi, Marrakech",
			price:   320,
			walk: []BookingStatus{
				BookingStatusAccepted,
				BookingStatusOnTheWay,
				BookingStatusArrived,
				BookingStatusInProgress,
				BookingStatusCompleted,
			},
		},
	}

	for i, b := range bookings {
		booking, err := svc.Booking.Create(ctx, services.CreateBookingRequest{
			ClientID:    ClientID,
			ServiceID:   uuid.New(),
			ScheduledAt: time.Now().UTC().Add(time.Duration(i+1) * 24 * time.Hour),
			Address:     b.address,
			BasePrice:   decimal.NewFromInt(b.price),
		})
		if err != nil {
			return log.Err("failed to seed booking", err, "address", b.address)
		}

		for _, status := range b.walk {
			if _, err := svc.Booking.Transition(ctx, booking.ID, cleaner, status, nil); err != nil {
				return log.Err("failed to walk seeded booking", err, "bookingID", booking.ID, "to", status)
			}
		}
		log.Info("Seeded booking", "bookingID", booking.ID, "walked", len(b.walk))
	}

	log.Info("Seed complete", "clientID", client.ID, "cleanerID", cleaner.ID, "adminID", AdminID)
	return nil
}
