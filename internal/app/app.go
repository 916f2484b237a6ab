package app

import (
	"context"

	"cleanmarket/config"
	"cleanmarket/internal/database"
	"cleanmarket/internal/events"
	"cleanmarket/internal/handlers/middleware"
	"cleanmarket/internal/jobs"
	"cleanmarket/internal/metrics"
	"cleanmarket/internal/services"
	"cleanmarket/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

type App struct {
	Database   database.DB
	Middleware middleware.Middleware
	EventBus   *events.EventBus
	Config     config.Config
	Metrics    *metrics.Collector
	Registry   *prometheus.Registry

	Services services.Service
}

func New() (*App, error) {
	log := logger.New("app").Function("New")

	config, err := config.New()
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	db, err := database.New(config)
	if err != nil {
		return &App{}, log.Err("failed to create database", err)
	}

	eventBus := events.New(db.Cache.Events)
	collector := metrics.NewCollector()
	if err := events.SubscribeAudit(eventBus, collector); err != nil {
		return &App{}, log.Err("failed to subscribe event audit", err)
	}

	svc := services.New(db, config, eventBus, collector)
	if err := jobs.RegisterAllJobs(svc.Scheduler, config, svc); err != nil {
		return &App{}, log.Err("failed to register jobs", err)
	}

	app := &App{
		Database:   db,
		Config:     config,
		Middleware: middleware.New(config),
		EventBus:   eventBus,
		Metrics:    collector,
		Registry:   metrics.NewRegistry(collector),
		Services:   svc,
	}

	if err := app.validate(); err != nil {
		return &App{}, log.Err("failed to validate app", err)
	}

	return app, nil
}

// StartScheduler starts periodic runs when the scheduler is enabled. Jobs stay
// registered either way so they can be triggered manually.
func (a *App) StartScheduler(ctx context.Context) error {
	log := logger.New("app").Function("StartScheduler")

	if !a.Config.SchedulerEnabled {
		log.Info("Scheduler disabled by configuration")
		return nil
	}

	return a.Services.Scheduler.Start(ctx)
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")
	if a.Database.SQL == nil {
		return log.ErrMsg("database is nil")
	}

	if a.Config == (config.Config{}) {
		return log.ErrMsg("config is nil")
	}

	nilChecks := []any{
		a.EventBus,
		a.Metrics,
		a.Registry,
		a.Services.Transaction,
		a.Services.Booking,
		a.Services.Ledger,
		a.Services.Fraud,
		a.Services.Reconciliation,
		a.Services.Scheduler,
	}

	for _, check := range nilChecks {
		if check == nil {
			return log.ErrMsg("nil check failed")
		}
	}

	return nil
}

func (a *App) Close() (err error) {
	if a.Services.Scheduler != nil {
		if closeErr := a.Services.Scheduler.Stop(context.Background()); closeErr != nil {
			err = closeErr
		}
	}

	if a.EventBus != nil {
		if closeErr := a.EventBus.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if dbErr := a.Database.Close(); dbErr != nil {
		err = dbErr
	}

	return err
}
