package services

import (
	"time"

	"cleanmarket/config"
	"cleanmarket/internal/database"
	"cleanmarket/internal/events"
	"cleanmarket/internal/metrics"
	"cleanmarket/internal/repositories"

	"github.com/juju/clock"
	"github.com/shopspring/decimal"
)

const defaultRunLockTTL = 10 * time.Minute

type Service struct {
	Transaction    repositories.Transactor
	Booking        *BookingService
	Ledger         *LedgerService
	Fraud          *FraudService
	Reconciliation *ReconciliationService
	Scheduler      *SchedulerService
}

// Dependencies are the collaborators every service is wired with. Tests swap the
// transactor, repositories and clock for in-memory versions.
type Dependencies struct {
	Transactor repositories.Transactor
	Repos      repositories.Repository
	Clock      clock.Clock
	Events     events.Publisher
	Metrics    *metrics.Collector
	Locker     RunLocker
}

func New(db database.DB, config config.Config, eventBus *events.EventBus, collector *metrics.Collector) Service {
	deps := Dependencies{
		Transactor: NewTransactionService(db),
		Repos:      repositories.New(db),
		Clock:      clock.WallClock,
		Metrics:    collector,
	}
	if eventBus != nil {
		deps.Events = eventBus
	}
	if config.DistributedLocksEnabled && db.Cache.General != nil {
		deps.Locker = database.NewRunLocker(db.Cache.General)
	}

	return NewWithDependencies(deps, config)
}

func NewWithDependencies(deps Dependencies, config config.Config) Service {
	bookingService := NewBookingService(
		deps.Transactor,
		deps.Repos,
		CommissionPolicyFromConfig(config),
		deps.Clock,
		deps.Events,
		deps.Metrics,
	)
	ledgerService := NewLedgerService(deps.Transactor, deps.Repos, deps.Clock, deps.Events, deps.Metrics)
	fraudService := NewFraudService(deps.Repos, FraudConfigFromConfig(config), deps.Clock, deps.Events, deps.Metrics)
	reconciliationService := NewReconciliationService(
		bookingService,
		ledgerService,
		fraudService,
		deps.Repos,
		ReconciliationConfigFromConfig(config),
		deps.Clock,
	)

	return Service{
		Transaction:    deps.Transactor,
		Booking:        bookingService,
		Ledger:         ledgerService,
		Fraud:          fraudService,
		Reconciliation: reconciliationService,
		Scheduler:      NewSchedulerService(deps.Clock, deps.Locker, runLockTTL(config), deps.Metrics),
	}
}

func CommissionPolicyFromConfig(config config.Config) CommissionPolicy {
	return CommissionPolicy{
		Rate:      decimal.NewFromFloat(config.CommissionRate),
		FreeQuota: config.CommissionFreeQuota,
	}
}

func FraudConfigFromConfig(config config.Config) FraudConfig {
	return FraudConfig{
		Window:                   days(config.FraudWindowDays),
		CancellationMinBookings:  config.FraudCancellationMinBookings,
		CancellationRatio:        decimal.NewFromFloat(config.FraudCancellationRatio),
		ConcentrationMinBookings: config.FraudConcentrationMinBookings,
		FlagCooldown:             time.Duration(config.FraudFlagCooldownHours) * time.Hour,
	}
}

func ReconciliationConfigFromConfig(config config.Config) ReconciliationConfig {
	return ReconciliationConfig{
		AutoConfirmAfter:     time.Duration(config.AutoConfirmAfterHours) * time.Hour,
		EventRetention:       days(config.EventRetentionDays),
		DebtWatchFloor:       decimal.NewFromFloat(config.DebtWatchFloor),
		DefaultDebtThreshold: decimal.NewFromFloat(config.DefaultDebtThreshold),
		BatchSize:            config.JobBatchSize,
		CommissionWorkers:    config.CommissionWorkers,
	}
}

func runLockTTL(config config.Config) time.Duration {
	if config.JobLockTTLMinutes <= 0 {
		return defaultRunLockTTL
	}
	return time.Duration(config.JobLockTTLMinutes) * time.Minute
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
