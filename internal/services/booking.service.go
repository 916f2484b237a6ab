package services

import (
	"context"
	"time"

	"cleanmarket/internal/events"
	"cleanmarket/internal/metrics"
	. "cleanmarket/internal/models"
	"cleanmarket/internal/repositories"
	"cleanmarket/internal/types"
	"cleanmarket/internal/utils"
	"cleanmarket/pkg/logger"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type CreateBookingRequest struct {
	ClientID    uuid.UUID       `json:"clientId"`
	CleanerID   *uuid.UUID      `json:"cleanerId,omitempty"`
	ServiceID   uuid.UUID       `json:"serviceId"`
	ScheduledAt time.Time       `json:"scheduledAt"`
	Address     string          `json:"address"`
	Latitude    float64         `json:"latitude"`
	Longitude   float64         `json:"longitude"`
	BasePrice   decimal.Decimal `json:"basePrice"`
	AddonsTotal decimal.Decimal `json:"addonsTotal"`
}

const maxAddressLength = 500

type BookingService struct {
	tx         repositories.Transactor
	repos      repositories.Repository
	commission CommissionPolicy
	clock      clock.Clock
	events     events.Publisher
	metrics    *metrics.Collector
	log        logger.Logger
}

func NewBookingService(
	tx repositories.Transactor,
	repos repositories.Repository,
	commission CommissionPolicy,
	clk clock.Clock,
	publisher events.Publisher,
	collector *metrics.Collector,
) *BookingService {
	return &BookingService{
		tx:         tx,
		repos:      repos,
		commission: commission,
		clock:      clk,
		events:     publisher,
		metrics:    collector,
		log:        logger.New("bookingService"),
	}
}

func (s *BookingService) now() time.Time {
	return s.clock.Now().UTC()
}

// Create records a new REQUESTED booking together with its first event.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*Booking, error) {
	log := s.log.TraceFromContext(ctx).Function("Create")

	if req.ClientID == uuid.Nil {
		return nil, log.ErrorWithType(types.ErrValidation, "client id is required")
	}
	if req.BasePrice.IsNegative() || req.AddonsTotal.IsNegative() {
		return nil, log.ErrorWithType(
			types.ErrValidation,
			"prices must not be negative",
			"basePrice", req.BasePrice,
			"addonsTotal", req.AddonsTotal,
		)
	}

	address, cleaned := utils.CleanText(req.Address, maxAddressLength)
	if cleaned {
		log.Warn("Booking address needed cleaning", "clientID", req.ClientID)
	}

	now := s.now()
	booking := &Booking{
		BaseUUIDModel: BaseUUIDModel{ID: NewID(), CreatedAt: now, UpdatedAt: now},
		ClientID:      req.ClientID,
		CleanerID:     req.CleanerID,
		ServiceID:     req.ServiceID,
		ScheduledAt:   req.ScheduledAt.UTC(),
		Address:       address,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		BasePrice:     req.BasePrice.Round(moneyPlaces),
		AddonsTotal:   req.AddonsTotal.Round(moneyPlaces),
		Status:        BookingStatusRequested,
		Version:       1,
	}
	booking.TotalPrice = booking.BasePrice.Add(booking.AddonsTotal)

	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		if err := s.repos.Booking.Create(ctx, booking); err != nil {
			return err
		}
		return s.repos.Booking.AppendEvent(ctx, &BookingEvent{
			AppendOnlyModel: AppendOnlyModel{CreatedAt: now},
			BookingID:       booking.ID,
			ActorID:         req.ClientID,
			NewStatus:       BookingStatusRequested,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info("Booking created", "bookingID", booking.ID, "clientID", booking.ClientID)
	return booking, nil
}

func (s *BookingService) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repos.Booking.GetByID(ctx, id)
}

// History returns the booking's events oldest first.
func (s *BookingService) History(ctx context.Context, id uuid.UUID) ([]*BookingEvent, error) {
	if _, err := s.repos.Booking.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repos.Booking.ListEvents(ctx, id)
}

// Transition moves a booking to target on behalf of actor. The status change, its
// event and (for CLIENT_CONFIRMED) the pending commission commit together or not at all.
func (s *BookingService) Transition(
	ctx context.Context,
	bookingID uuid.UUID,
	actor types.Actor,
	target BookingStatus,
	meta map[string]any,
) (*Booking, error) {
	log := s.log.TraceFromContext(ctx).Function("Transition")

	var (
		updated *Booking
		from    BookingStatus
	)
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		booking, err := s.repos.Booking.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}

		if !CanTransition(booking.Status, target) {
			return log.ErrorWithType(
				types.ErrInvalidTransition,
				"transition not allowed",
				"bookingID", bookingID,
				"from", booking.Status,
				"to", target,
			)
		}

		if !mayDrive(booking, actor, target) {
			return log.ErrorWithType(
				types.ErrForbidden,
				"actor may not drive this transition",
				"bookingID", bookingID,
				"actorID", actor.ID,
				"role", actor.Role,
				"to", target,
			)
		}

		now := s.now()
		from = booking.Status
		expectedVersion := booking.Version

		if target == BookingStatusAccepted && booking.CleanerID == nil {
			cleanerID := actor.ID
			booking.CleanerID = &cleanerID
		}
		booking.Status = target
		booking.UpdatedAt = now

		if err := s.repos.Booking.UpdateStatus(ctx, booking, expectedVersion); err != nil {
			return err
		}

		previous := from
		if err := s.repos.Booking.AppendEvent(ctx, &BookingEvent{
			AppendOnlyModel: AppendOnlyModel{CreatedAt: now},
			BookingID:       booking.ID,
			ActorID:         actor.ID,
			PreviousStatus:  &previous,
			NewStatus:       target,
			Metadata:        datatypes.JSONMap(meta),
		}); err != nil {
			return err
		}

		if target == BookingStatusClientConfirmed {
			if err := s.createPendingCommission(ctx, booking, now); err != nil {
				return err
			}
		}

		updated = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TransitionApplied(from.String(), target.String())
	s.publish(ctx, updated, actor, from)

	log.Info(
		"Booking transitioned",
		"bookingID", bookingID,
		"from", from,
		"to", target,
		"actorID", actor.ID,
		"role", actor.Role,
	)
	return updated, nil
}

// createPendingCommission must run inside the transition's unit. The cleaner profile
// stays locked until the unit ends, so the count read here is the one incremented.
func (s *BookingService) createPendingCommission(
	ctx context.Context,
	booking *Booking,
	now time.Time,
) error {
	log := s.log.TraceFromContext(ctx).Function("createPendingCommission")

	if booking.CleanerID == nil {
		return log.ErrorWithType(
			types.ErrValidation,
			"confirmed booking has no assigned cleaner",
			"bookingID", booking.ID,
		)
	}
	cleanerID := *booking.CleanerID

	profile, err := s.repos.Cleaner.LockProfile(ctx, cleanerID)
	if err != nil {
		return err
	}

	amount, free := s.commission.Calculate(booking.TotalPrice, profile.CompletedJobsCount)
	percentage := s.commission.Rate
	if free {
		percentage = decimal.Zero
	}

	commission := &Commission{
		BaseUUIDModel: BaseUUIDModel{CreatedAt: now, UpdatedAt: now},
		CleanerID:     cleanerID,
		BookingID:     booking.ID,
		Percentage:    percentage,
		Amount:        amount,
		IsFreeJob:     free,
		Status:        CommissionStatusPending,
	}
	if err := s.repos.Commission.Create(ctx, commission); err != nil {
		return err
	}

	if err := s.repos.Cleaner.IncrementCompletedJobs(ctx, cleanerID, now); err != nil {
		return err
	}

	log.Info(
		"Pending commission recorded",
		"bookingID", booking.ID,
		"cleanerID", cleanerID,
		"amount", amount,
		"freeJob", free,
		"completedJobs", profile.CompletedJobsCount,
	)
	return nil
}

func (s *BookingService) publish(
	ctx context.Context,
	booking *Booking,
	actor types.Actor,
	from BookingStatus,
) {
	if s.events == nil {
		return
	}

	data := map[string]any{
		"bookingId": booking.ID.String(),
		"from":      from.String(),
		"to":        booking.Status.String(),
		"actorId":   actor.ID.String(),
		"role":      string(actor.Role),
		"version":   booking.Version,
	}
	if booking.CleanerID != nil {
		data["cleanerId"] = booking.CleanerID.String()
	}

	clientID := booking.ClientID
	err := s.events.Publish(ctx, events.BOOKING_CHANNEL, events.Event{
		Type:   events.BOOKING_TRANSITIONED,
		UserID: &clientID,
		Data:   data,
	})
	if err != nil {
		s.log.TraceFromContext(ctx).Function("publish").
			Warn("failed to publish booking event", "bookingID", booking.ID, "error", err)
	}
}
