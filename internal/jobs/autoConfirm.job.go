package jobs

import (
	"context"

	"cleanmarket/internal/services"
	"cleanmarket/internal/types"
	"cleanmarket/pkg/logger"
)

type staleBookingConfirmer interface {
	AutoConfirmStale(ctx context.Context) (types.JobResult, error)
}

// AutoConfirmJob confirms completed bookings the client never confirmed.
type AutoConfirmJob struct {
	reconciliation staleBookingConfirmer
	log            logger.Logger
	schedule       services.Schedule
}

func NewAutoConfirmJob(
	reconciliation staleBookingConfirmer,
	schedule services.Schedule,
) *AutoConfirmJob {
	log := logger.New("autoConfirmJob")
	log.Info("Creating new auto-confirm job", "schedule", schedule.String())

	return &AutoConfirmJob{
		reconciliation: reconciliation,
		log:            log,
		schedule:       schedule,
	}
}

func (j *AutoConfirmJob) Name() string {
	return services.AutoConfirmJobName
}

func (j *AutoConfirmJob) Execute(ctx context.Context) (types.JobResult, error) {
	log := j.log.TraceFromContext(ctx).Function("Execute")

	log.Info("Starting stale booking confirmation")

	result, err := j.reconciliation.AutoConfirmStale(ctx)
	if err != nil {
		return result, log.Err("auto-confirm failed", err)
	}

	log.Info("Stale booking confirmation completed", "confirmed", result.Succeeded)
	return result, nil
}

func (j *AutoConfirmJob) Schedule() services.Schedule {
	return j.schedule
}
