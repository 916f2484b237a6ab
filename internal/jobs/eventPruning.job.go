package jobs

import (
	"context"

	"cleanmarket/internal/services"
	"cleanmarket/internal/types"
	"cleanmarket/pkg/logger"
)

type eventPruner interface {
	PruneEvents(ctx context.Context) (types.JobResult, error)
}

type EventPruningJob struct {
	reconciliation eventPruner
	log            logger.Logger
	schedule       services.Schedule
}

func NewEventPruningJob(reconciliation eventPruner, schedule services.Schedule) *EventPruningJob {
	log := logger.New("eventPruningJob")
	log.Info("Creating new event pruning job", "schedule", schedule.String())

	return &EventPruningJob{
		reconciliation: reconciliation,
		log:            log,
		schedule:       schedule,
	}
}

func (j *EventPruningJob) Name() string {
	return services.EventPruningJobName
}

func (j *EventPruningJob) Execute(ctx context.Context) (types.JobResult, error) {
	log := j.log.TraceFromContext(ctx).Function("Execute")

	result, err := j.reconciliation.PruneEvents(ctx)
	if err != nil {
		return result, log.Err("event pruning failed", err)
	}
	return result, nil
}

func (j *EventPruningJob) Schedule() services.Schedule {
	return j.schedule
}
