package jobs

import (
	"context"

	"cleanmarket/internal/services"
	"cleanmarket/internal/types"
	"cleanmarket/pkg/logger"
)

type commissionApplier interface {
	ApplyPendingCommissions(ctx context.Context) (types.JobResult, error)
}

// CommissionApplicationJob posts every pending commission to the cleaners' wallets.
type CommissionApplicationJob struct {
	reconciliation commissionApplier
	log            logger.Logger
	schedule       services.Schedule
}

func NewCommissionApplicationJob(
	reconciliation commissionApplier,
	schedule services.Schedule,
) *CommissionApplicationJob {
	log := logger.New("commissionApplicationJob")
	log.Info("Creating new commission application job", "schedule", schedule.String())

	return &CommissionApplicationJob{
		reconciliation: reconciliation,
		log:            log,
		schedule:       schedule,
	}
}

func (j *CommissionApplicationJob) Name() string {
	return services.CommissionApplicationJobName
}

func (j *CommissionApplicationJob) Execute(ctx context.Context) (types.JobResult, error) {
	log := j.log.TraceFromContext(ctx).Function("Execute")

	done := log.Timer("commission application")
	defer done()

	result, err := j.reconciliation.ApplyPendingCommissions(ctx)
	if err != nil {
		return result, log.Err("commission application failed", err)
	}

	if result.Failed > 0 {
		log.Warn("Some commissions could not be applied", "failed", result.Failed, "errors", result.Errors)
	}
	return result, nil
}

func (j *CommissionApplicationJob) Schedule() services.Schedule {
	return j.schedule
}
