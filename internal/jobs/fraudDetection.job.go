package jobs

import (
	"context"

	"cleanmarket/internal/services"
	"cleanmarket/internal/types"
	"cleanmarket/pkg/logger"
)

type fraudDetector interface {
	DetectFraud(ctx context.Context) (types.JobResult, error)
}

// FraudDetectionJob runs the booking history heuristics. Flags are advisory only.
type FraudDetectionJob struct {
	reconciliation fraudDetector
	log            logger.Logger
	schedule       services.Schedule
}

func NewFraudDetectionJob(reconciliation fraudDetector, schedule services.Schedule) *FraudDetectionJob {
	log := logger.New("fraudDetectionJob")
	log.Info("Creating new fraud detection job", "schedule", schedule.String())

	return &FraudDetectionJob{
		reconciliation: reconciliation,
		log:            log,
		schedule:       schedule,
	}
}

func (j *FraudDetectionJob) Name() string {
	return services.FraudDetectionJobName
}

func (j *FraudDetectionJob) Execute(ctx context.Context) (types.JobResult, error) {
	log := j.log.TraceFromContext(ctx).Function("Execute")

	result, err := j.reconciliation.DetectFraud(ctx)
	if err != nil {
		return result, log.Err("fraud detection failed", err)
	}

	log.Info("Fraud detection completed", "flagged", result.Succeeded, "failed", result.Failed)
	return result, nil
}

func (j *FraudDetectionJob) Schedule() services.Schedule {
	return j.schedule
}
