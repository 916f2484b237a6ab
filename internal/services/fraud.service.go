package services

import (
	"context"
	"fmt"
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
)

type FraudConfig struct {
	Window                   time.Duration
	CancellationMinBookings  int
	CancellationRatio        decimal.Decimal
	ConcentrationMinBookings int
	// FlagCooldown suppresses a repeat flag for the same user and type. Zero raises a
	// flag on every run.
	FlagCooldown time.Duration
}

func DefaultFraudConfig() FraudConfig {
	return FraudConfig{
		Window:                   30 * 24 * time.Hour,
		CancellationMinBookings:  5,
		CancellationRatio:        decimal.RequireFromString("0.30"),
		ConcentrationMinBookings: 10,
	}
}

type FlagRequest struct {
	UserID   uuid.UUID
	Type     FraudFlagType
	Severity FraudSeverity
	Reason   string
}

// FraudService evaluates the booking history heuristics and records advisory flags.
// Nothing in the request path waits on it.
type FraudService struct {
	repos   repositories.Repository
	config  FraudConfig
	clock   clock.Clock
	events  events.Publisher
	metrics *metrics.Collector
	log     logger.Logger
}

func NewFraudService(
	repos repositories.Repository,
	config FraudConfig,
	clk clock.Clock,
	publisher events.Publisher,
	collector *metrics.Collector,
) *FraudService {
	return &FraudService{
		repos:   repos,
		config:  config,
		clock:   clk,
		events:  publisher,
		metrics: collector,
		log:     logger.New("fraudService"),
	}
}

// Flag records one flag. It returns created=false when the cooldown suppressed it.
func (s *FraudService) Flag(ctx context.Context, req FlagRequest) (*FraudFlag, bool, error) {
	log := s.log.TraceFromContext(ctx).Function("Flag")
	now := s.clock.Now().UTC()

	if s.config.FlagCooldown > 0 {
		recent, err := s.repos.FraudFlag.ExistsSince(ctx, req.UserID, req.Type, now.Add(-s.config.FlagCooldown))
		if err != nil {
			return nil, false, err
		}
		if recent {
			log.Debug("Flag suppressed by cooldown", "userID", req.UserID, "type", req.Type)
			return nil, false, nil
		}
	}

	reason, _ := utils.CleanText(req.Reason, maxReasonLength)
	flag := &FraudFlag{
		AppendOnlyModel: AppendOnlyModel{CreatedAt: now},
		UserID:          req.UserID,
		Type:            req.Type,
		Severity:        req.Severity,
		Reason:          reason,
	}
	if err := s.repos.FraudFlag.Create(ctx, flag); err != nil {
		return nil, false, err
	}

	s.metrics.FlagRaised(string(req.Type))
	s.publish(ctx, flag)

	log.Info(
		"Fraud flag raised",
		"userID", req.UserID,
		"type", req.Type,
		"severity", req.Severity,
		"reason", req.Reason,
	)
	return flag, true, nil
}

func (s *FraudService) Flags(ctx context.Context, userID uuid.UUID) ([]*FraudFlag, error) {
	return s.repos.FraudFlag.ListByUser(ctx, userID)
}

// Detect runs both booking history heuristics over the trailing window. A heuristic
// whose aggregate cannot be loaded counts as one failure; the run errors only when
// neither could be loaded.
func (s *FraudService) Detect(ctx context.Context, jobName string) (types.JobResult, error) {
	log := s.log.TraceFromContext(ctx).Function("Detect")

	now := s.clock.Now().UTC()
	since := now.Add(-s.config.Window)
	result := types.NewJobResult(jobName, now)

	cancellationErr := s.detectCancellations(ctx, since, &result)
	if cancellationErr != nil {
		result.Failure(cancellationErr)
	}

	concentrationErr := s.detectConcentration(ctx, since, &result)
	if concentrationErr != nil {
		result.Failure(concentrationErr)
	}

	if cancellationErr != nil && concentrationErr != nil {
		return result.Finish(s.clock.Now().UTC()), log.Err("fraud detection could not load history", cancellationErr)
	}

	log.Info(
		"Fraud detection finished",
		"flagged", result.Succeeded,
		"clean", result.Skipped,
		"failed", result.Failed,
	)
	return result.Finish(s.clock.Now().UTC()), nil
}

func (s *FraudService) windowDays() int {
	return int(s.config.Window / (24 * time.Hour))
}

func (s *FraudService) detectCancellations(
	ctx context.Context,
	since time.Time,
	result *types.JobResult,
) error {
	stats, err := s.repos.Booking.CancellationStatsByCleaner(ctx, since, s.config.CancellationMinBookings)
	if err != nil {
		return err
	}

	hundred := decimal.NewFromInt(100)
	for _, stat := range stats {
		if stat.Total == 0 {
			result.Skip()
			continue
		}

		ratio := decimal.NewFromInt(stat.Cancelled).Div(decimal.NewFromInt(stat.Total))
		if !ratio.GreaterThan(s.config.CancellationRatio) {
			result.Skip()
			continue
		}

		reason := fmt.Sprintf(
			"cancelled %d of %d bookings (%s%%) in the last %d days",
			stat.Cancelled,
			stat.Total,
			ratio.Mul(hundred).StringFixed(1),
			s.windowDays(),
		)
		s.record(ctx, result, FlagRequest{
			UserID:   stat.CleanerID,
			Type:     FraudFlagHighCancellationRate,
			Severity: FraudSeverityMedium,
			Reason:   reason,
		})
	}

	return nil
}

func (s *FraudService) detectConcentration(
	ctx context.Context,
	since time.Time,
	result *types.JobResult,
) error {
	rows, err := s.repos.Booking.ConcentrationByClient(ctx, since, s.config.ConcentrationMinBookings)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if row.DistinctCleaners != 1 {
			result.Skip()
			continue
		}

		reason := fmt.Sprintf(
			"%d bookings in the last %d days all with a single cleaner",
			row.Total,
			s.windowDays(),
		)
		s.record(ctx, result, FlagRequest{
			UserID:   row.ClientID,
			Type:     FraudFlagSuspiciousBookingPattern,
			Severity: FraudSeverityLow,
			Reason:   reason,
		})
	}

	return nil
}

func (s *FraudService) record(ctx context.Context, result *types.JobResult, req FlagRequest) {
	_, created, err := s.Flag(ctx, req)
	switch {
	case err != nil:
		result.Failure(err)
	case created:
		result.Success()
	default:
		result.Skip()
	}
}

func (s *FraudService) publish(ctx context.Context, flag *FraudFlag) {
	if s.events == nil {
		return
	}

	userID := flag.UserID
	err := s.events.Publish(ctx, events.FRAUD_CHANNEL, events.Event{
		Type:   events.FRAUD_FLAGGED,
		UserID: &userID,
		Data: map[string]any{
			"flagId":   flag.ID.String(),
			"type":     string(flag.Type),
			"severity": string(flag.Severity),
			"reason":   flag.Reason,
		},
	})
	if err != nil {
		s.log.TraceFromContext(ctx).Function("publish").
			Warn("failed to publish fraud flag", "flagID", flag.ID, "error", err)
	}
}
