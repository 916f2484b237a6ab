package jobs

import (
	"cleanmarket/config"
	"cleanmarket/internal/services"
	"cleanmarket/pkg/logger"
)

// Import schedule constants
const (
	Hourly           = services.Hourly
	DailyCommissions = services.DailyCommissions
	DailyDebt        = services.DailyDebt
	DailyFraud       = services.DailyFraud
)

// RegisterAllJobs registers the reconciliation jobs with the scheduler service. Manual
// triggers find the jobs by name even when the scheduler is never started.
func RegisterAllJobs(
	schedulerService *services.SchedulerService,
	config config.Config,
	svc services.Service,
) error {
	log := logger.New("jobs").Function("RegisterAllJobs")

	if !config.SchedulerEnabled {
		log.Info("Scheduler disabled, registering jobs for manual triggers only")
	}

	reconciliation := svc.Reconciliation
	jobs := []services.Job{
		NewAutoConfirmJob(reconciliation, Hourly),
		NewEventPruningJob(reconciliation, Hourly),
		NewCommissionApplicationJob(reconciliation, DailyCommissions),
		NewDebtMonitoringJob(reconciliation, DailyDebt),
		NewFraudDetectionJob(reconciliation, DailyFraud),
	}

	for _, job := range jobs {
		if err := schedulerService.AddJob(job); err != nil {
			return log.Err("failed to register job", err, "job", job.Name())
		}
		log.Info("Registered job", "job", job.Name(), "schedule", job.Schedule().String())
	}

	return nil
}
