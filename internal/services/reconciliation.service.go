package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "cleanmarket/internal/models"
	"cleanmarket/internal/repositories"
	"cleanmarket/internal/types"
	"cleanmarket/pkg/logger"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	AutoConfirmJobName           = "auto-confirm"
	EventPruningJobName          = "event-pruning"
	CommissionApplicationJobName = "commission-application"
	DebtMonitoringJobName        = "debt-monitoring"
	FraudDetectionJobName        = "fraud-detection"
)

type ReconciliationConfig struct {
	AutoConfirmAfter     time.Duration
	EventRetention       time.Duration
	DebtWatchFloor       decimal.Decimal
	DefaultDebtThreshold decimal.Decimal
	BatchSize            int
	CommissionWorkers    int
}

func DefaultReconciliationConfig() ReconciliationConfig {
	return ReconciliationConfig{
		AutoConfirmAfter:     48 * time.Hour,
		EventRetention:       90 * 24 * time.Hour,
		DebtWatchFloor:       decimal.NewFromInt(-100),
		DefaultDebtThreshold: decimal.NewFromInt(-200),
		BatchSize:            500,
		CommissionWorkers:    4,
	}
}

// ReconciliationService holds the bodies of the periodic jobs. Every item is handled in
// its own unit; a failing item is counted and logged and never stops the batch.
type ReconciliationService struct {
	bookings *BookingService
	ledger   *LedgerService
	fraud    *FraudService
	repos    repositories.Repository
	config   ReconciliationConfig
	clock    clock.Clock
	log      logger.Logger
}

func NewReconciliationService(
	bookings *BookingService,
	ledger *LedgerService,
	fraud *FraudService,
	repos repositories.Repository,
	config ReconciliationConfig,
	clk clock.Clock,
) *ReconciliationService {
	return &ReconciliationService{
		bookings: bookings,
		ledger:   ledger,
		fraud:    fraud,
		repos:    repos,
		config:   config,
		clock:    clk,
		log:      logger.New("reconciliationService"),
	}
}

func (s *ReconciliationService) now() time.Time {
	return s.clock.Now().UTC()
}

// AutoConfirmStale confirms COMPLETED bookings the client left unconfirmed for too
// long, through the same transition path a client would use.
func (s *ReconciliationService) AutoConfirmStale(ctx context.Context) (types.JobResult, error) {
	log := s.log.TraceFromContext(ctx).Function("AutoConfirmStale")

	started := s.now()
	result := types.NewJobResult(AutoConfirmJobName, started)
	cutoff := started.Add(-s.config.AutoConfirmAfter)
	meta := map[string]any{"reason": "auto-confirm", "completedBefore": cutoff.Format(time.RFC3339)}

	after := uuid.Nil
	for page := 0; ; page++ {
		batch, err := s.repos.Booking.ListStaleCompleted(ctx, cutoff, after, s.config.BatchSize)
		if err != nil {
			if page == 0 {
				return result.Finish(s.now()), log.Err("failed to load stale bookings", err)
			}
			result.Failure(err)
			break
		}

		for _, booking := range batch {
			_, err := s.bookings.Transition(ctx, booking.ID, types.SystemActor, BookingStatusClientConfirmed, meta)
			switch {
			case err == nil:
				result.Success()
			case errors.Is(err, types.ErrInvalidTransition), errors.Is(err, types.ErrConflict):
				// confirmed or disputed since it was listed
				result.Skip()
			default:
				result.Failure(fmt.Errorf("booking %s: %w", booking.ID, err))
			}
		}

		if len(batch) < s.config.BatchSize || ctx.Err() != nil {
			break
		}
		after = batch[len(batch)-1].ID
	}

	log.Info(
		"Auto-confirm finished",
		"confirmed", result.Succeeded,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result.Finish(s.now()), nil
}

// PruneEvents deletes booking events past the retention window. Bookings are untouched.
func (s *ReconciliationService) PruneEvents(ctx context.Context) (types.JobResult, error) {
	log := s.log.TraceFromContext(ctx).Function("PruneEvents")

	started := s.now()
	result := types.NewJobResult(EventPruningJobName, started)
	cutoff := started.Add(-s.config.EventRetention)

	deleted, err := s.repos.Booking.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return result.Finish(s.now()), log.Err("failed to prune booking events", err, "cutoff", cutoff)
	}

	result.Processed = int(deleted)
	result.Succeeded = int(deleted)

	log.Info("Booking events pruned", "deleted", deleted, "cutoff", cutoff)
	return result.Finish(s.now()), nil
}

// ApplyPendingCommissions posts every PENDING commission. Cleaners are processed in
// parallel; one cleaner's commissions are applied one after another.
func (s *ReconciliationService) ApplyPendingCommissions(ctx context.Context) (types.JobResult, error) {
	log := s.log.TraceFromContext(ctx).Function("ApplyPendingCommissions")

	result := types.NewJobResult(CommissionApplicationJobName, s.now())

	after := uuid.Nil
	for page := 0; ; page++ {
		batch, err := s.repos.Commission.ListPending(ctx, after, s.config.BatchSize)
		if err != nil {
			if page == 0 {
				return result.Finish(s.now()), log.Err("failed to load pending commissions", err)
			}
			result.Failure(err)
			break
		}

		result.Merge(s.applyBatch(ctx, batch))

		if len(batch) < s.config.BatchSize || ctx.Err() != nil {
			break
		}
		after = batch[len(batch)-1].ID
	}

	log.Info(
		"Commission application finished",
		"applied", result.Succeeded,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result.Finish(s.now()), nil
}

func (s *ReconciliationService) applyBatch(ctx context.Context, batch []*Commission) types.JobResult {
	var (
		order     []uuid.UUID
		byCleaner = map[uuid.UUID][]*Commission{}
	)
	for _, commission := range batch {
		if _, seen := byCleaner[commission.CleanerID]; !seen {
			order = append(order, commission.CleanerID)
		}
		byCleaner[commission.CleanerID] = append(byCleaner[commission.CleanerID], commission)
	}

	var (
		mu    sync.Mutex
		total types.JobResult
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(s.config.CommissionWorkers, 1))

	for _, cleanerID := range order {
		commissions := byCleaner[cleanerID]
		group.Go(func() error {
			var partial types.JobResult
			for _, commission := range commissions {
				applied, err := s.ledger.ApplyCommission(groupCtx, commission)
				switch {
				case err != nil:
					partial.Failure(fmt.Errorf("commission %s: %w", commission.ID, err))
				case applied:
					partial.Success()
				default:
					partial.Skip()
				}
			}

			mu.Lock()
			total.Merge(partial)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	return total
}

// MonitorDebt flags cleaners whose balance sits below their debt threshold.
func (s *ReconciliationService) MonitorDebt(ctx context.Context) (types.JobResult, error) {
	log := s.log.TraceFromContext(ctx).Function("MonitorDebt")

	result := types.NewJobResult(DebtMonitoringJobName, s.now())

	after := uuid.Nil
	for page := 0; ; page++ {
		batch, err := s.repos.Wallet.ListBelow(ctx, s.config.DebtWatchFloor, after, s.config.BatchSize)
		if err != nil {
			if page == 0 {
				return result.Finish(s.now()), log.Err("failed to load indebted wallets", err)
			}
			result.Failure(err)
			break
		}

		for _, wallet := range batch {
			s.checkDebt(ctx, wallet, &result)
		}

		if len(batch) < s.config.BatchSize || ctx.Err() != nil {
			break
		}
		after = batch[len(batch)-1].OwnerID
	}

	log.Info(
		"Debt monitoring finished",
		"flagged", result.Succeeded,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result.Finish(s.now()), nil
}

func (s *ReconciliationService) checkDebt(ctx context.Context, wallet *Wallet, result *types.JobResult) {
	threshold := s.config.DefaultDebtThreshold
	override, err := s.repos.DebtThreshold.Get(ctx, wallet.OwnerID)
	if err != nil {
		result.Failure(fmt.Errorf("wallet %s: %w", wallet.OwnerID, err))
		return
	}
	if override != nil {
		threshold = override.Threshold
	}

	if !wallet.Balance.LessThan(threshold) {
		result.Skip()
		return
	}

	_, created, err := s.fraud.Flag(ctx, FlagRequest{
		UserID:   wallet.OwnerID,
		Type:     FraudFlagExcessiveDebt,
		Severity: FraudSeverityHigh,
		Reason: fmt.Sprintf(
			"wallet balance %s MAD is below debt threshold %s MAD",
			wallet.Balance.StringFixed(moneyPlaces),
			threshold.StringFixed(moneyPlaces),
		),
	})
	switch {
	case err != nil:
		result.Failure(fmt.Errorf("wallet %s: %w", wallet.OwnerID, err))
	case created:
		result.Success()
	default:
		result.Skip()
	}
}

// SetDebtThreshold overrides the default threshold for one cleaner. The threshold
// may not sit above the watch floor, or the scan would never see the wallet.
func (s *ReconciliationService) SetDebtThreshold(
	ctx context.Context,
	cleanerID uuid.UUID,
	threshold decimal.Decimal,
) (*DebtThreshold, error) {
	log := s.log.TraceFromContext(ctx).Function("SetDebtThreshold")

	threshold = threshold.Round(moneyPlaces)
	if threshold.GreaterThan(s.config.DebtWatchFloor) {
		return nil, log.ErrorWithType(
			types.ErrValidation,
			"debt threshold must not be above the watch floor",
			"threshold", threshold,
			"floor", s.config.DebtWatchFloor,
		)
	}

	now := s.now()
	override := &DebtThreshold{
		CleanerID: cleanerID,
		Threshold: threshold,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.DebtThreshold.Upsert(ctx, override); err != nil {
		return nil, err
	}

	log.Info("Debt threshold set", "cleanerID", cleanerID, "threshold", threshold)
	return override, nil
}

// DetectFraud runs the booking history heuristics.
func (s *ReconciliationService) DetectFraud(ctx context.Context) (types.JobResult, error) {
	return s.fraud.Detect(ctx, FraudDetectionJobName)
}
