package jobs

import (
	"context"

	"cleanmarket/internal/services"
	"cleanmarket/internal/types"
	"cleanmarket/pkg/logger"
)

type debtMonitor interface {
	MonitorDebt(ctx context.Context) (types.JobResult, error)
}

type DebtMonitoringJob struct {
	reconciliation debtMonitor
	log            logger.Logger
	schedule       services.Schedule
}

func NewDebtMonitoringJob(reconciliation debtMonitor, schedule services.Schedule) *DebtMonitoringJob {
	log := logger.New("debtMonitoringJob")
	log.Info("Creating new debt monitoring job", "schedule", schedule.String())

	return &DebtMonitoringJob{
		reconciliation: reconciliation,
		log:            log,
		schedule:       schedule,
	}
}

func (j *DebtMonitoringJob) Name() string {
	return services.DebtMonitoringJobName
}

func (j *DebtMonitoringJob) Execute(ctx context.Context) (types.JobResult, error) {
	log := j.log.TraceFromContext(ctx).Function("Execute")

	log.Info("Starting wallet debt scan")

	result, err := j.reconciliation.MonitorDebt(ctx)
	if err != nil {
		return result, log.Err("debt monitoring failed", err)
	}

	log.Info("Wallet debt scan completed", "flagged", result.Succeeded)
	return result, nil
}

func (j *DebtMonitoringJob) Schedule() services.Schedule {
	return j.schedule
}
