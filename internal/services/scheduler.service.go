package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"cleanmarket/internal/database"
	"cleanmarket/internal/metrics"
	"cleanmarket/internal/types"
	"cleanmarket/pkg/logger"

	"github.com/go-co-op/gocron"
	"github.com/im7mortal/kmutex"
	"github.com/juju/clock"
)

type Schedule int

const (
	Hourly           Schedule = iota
	DailyCommissions          // 02:00 UTC every day
	DailyDebt                 // 03:00 UTC every day
	DailyFraud                // 04:00 UTC every day
)

func (s Schedule) String() string {
	switch s {
	case Hourly:
		return "hourly"
	case DailyCommissions:
		return "daily 02:00 UTC"
	case DailyDebt:
		return "daily 03:00 UTC"
	case DailyFraud:
		return "daily 04:00 UTC"
	}
	return "unknown"
}

func (s Schedule) dailyAt() string {
	switch s {
	case DailyCommissions:
		return "02:00"
	case DailyDebt:
		return "03:00"
	case DailyFraud:
		return "04:00"
	}
	return ""
}

// Job represents a scheduled task that can be executed by the scheduler
type Job interface {
	// Name is also the identifier used for manual triggers
	Name() string

	// Execute runs one pass. Per-item failures belong in the result; an error means
	// the pass could not run at all.
	Execute(ctx context.Context) (types.JobResult, error)
	Schedule() Schedule
}

// RunLocker keeps a job from running on two instances at once. A held lease is
// extended every third of its TTL until the run finishes.
type RunLocker interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (database.Lease, bool, error)
}

type JobInfo struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	NextRun  *time.Time `json:"nextRun,omitempty"`
}

type SchedulerService struct {
	scheduler *gocron.Scheduler
	jobs      map[string]Job
	entries   map[string]*gocron.Job
	running   *kmutex.Kmutex
	locker    RunLocker
	lockTTL   time.Duration
	clock     clock.Clock
	metrics   *metrics.Collector
	log       logger.Logger
	started   bool
	mu        sync.Mutex
}

// NewSchedulerService builds a UTC scheduler. locker may be nil, in which case runs
// are only serialized within this process.
func NewSchedulerService(
	clk clock.Clock,
	locker RunLocker,
	lockTTL time.Duration,
	collector *metrics.Collector,
) *SchedulerService {
	scheduler := gocron.NewScheduler(time.UTC)
	// a run that outlasts its period delays the next one instead of overlapping it
	scheduler.SingletonModeAll()

	return &SchedulerService{
		scheduler: scheduler,
		jobs:      make(map[string]Job),
		entries:   make(map[string]*gocron.Job),
		running:   kmutex.New(),
		locker:    locker,
		lockTTL:   lockTTL,
		clock:     clk,
		metrics:   collector,
		log:       logger.New("scheduler"),
	}
}

// AddJob registers a job with the scheduler
func (s *SchedulerService) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("AddJob")

	if _, exists := s.jobs[job.Name()]; exists {
		return log.ErrorWithType(types.ErrConflict, "job already registered", "job", job.Name())
	}

	task := func() {
		_, _ = s.run(context.Background(), job)
	}

	var (
		entry *gocron.Job
		err   error
	)
	switch job.Schedule() {
	case DailyCommissions, DailyDebt, DailyFraud:
		entry, err = s.scheduler.Every(1).Day().At(job.Schedule().dailyAt()).Do(task)
	case Hourly:
		entry, err = s.scheduler.Every(1).Hour().WaitForSchedule().Do(task)
	default:
		return log.ErrorWithType(types.ErrValidation, "unknown schedule", "job", job.Name(), "schedule", job.Schedule())
	}

	if err != nil {
		return log.Err("failed to register job with scheduler", err, "job", job.Name())
	}

	s.jobs[job.Name()] = job
	s.entries[job.Name()] = entry
	log.Info("Job registered successfully", "job", job.Name(), "schedule", job.Schedule().String())

	return nil
}

// run executes one pass of job. Overlapping invocations in this process queue behind
// each other; another instance holding the run-lock makes this pass a no-op.
func (s *SchedulerService) run(ctx context.Context, job Job) (types.JobResult, error) {
	log := s.log.TraceFromContext(ctx).Function("run")
	name := job.Name()

	s.running.Lock(name)
	defer s.running.Unlock(name)

	if s.locker != nil {
		lease, acquired, err := s.locker.TryAcquire(ctx, name, s.lockTTL)
		switch {
		case err != nil:
			log.Warn("Run lock unavailable, continuing with local lock only", "job", name, "error", err)
		case !acquired:
			now := s.clock.Now().UTC()
			result := types.JobResult{Job: name, StartedAt: now, FinishedAt: now, LockHeld: true}
			s.metrics.JobFinished(result, nil)
			return result, nil
		default:
			stop := s.keepLease(ctx, name, lease)
			defer func() {
				stop()
				lease.Release(context.Background())
			}()
		}
	}

	log.Info("Executing job", "job", name)
	result, err := job.Execute(ctx)
	if result.Job == "" {
		result.Job = name
	}
	s.metrics.JobFinished(result, err)

	if err != nil {
		return result, log.Err("Job execution failed", err, "job", name)
	}

	log.Info(
		"Job execution completed",
		"job", name,
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
	return result, nil
}

// keepLease extends lease until the returned stop func is called. Renewal ends early
// if the lease was lost; the run itself is never interrupted.
func (s *SchedulerService) keepLease(ctx context.Context, name string, lease database.Lease) func() {
	log := s.log.TraceFromContext(ctx).Function("keepLease")
	renewCtx := context.WithoutCancel(ctx)
	interval := max(s.lockTTL/3, time.Second)

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-done:
				return
			case <-s.clock.After(interval):
			}

			extended, err := lease.Extend(renewCtx, s.lockTTL)
			switch {
			case err != nil:
				log.Warn("Failed to extend run lock", "job", name, "error", err)
			case !extended:
				log.Warn("Run lock lost while job still running", "job", name)
				return
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

// Trigger runs a registered job now and waits for it to finish.
func (s *SchedulerService) Trigger(ctx context.Context, name string) (types.JobResult, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		return types.JobResult{}, s.log.Function("Trigger").
			ErrorWithType(types.ErrNotFound, "job not found", "job", name)
	}

	s.log.TraceFromContext(ctx).Function("Trigger").Info("Manually triggering job", "job", name)
	return s.run(ctx, job)
}

// Jobs lists registered jobs sorted by name
func (s *SchedulerService) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, job := range s.jobs {
		info := JobInfo{Name: name, Schedule: job.Schedule().String()}
		if entry := s.entries[name]; s.started && entry != nil {
			next := entry.NextRun()
			info.NextRun = &next
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Start begins the scheduler
func (s *SchedulerService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("Start")

	if s.started {
		log.Info("Scheduler already started")
		return nil
	}

	if len(s.jobs) == 0 {
		log.Info("No jobs registered, scheduler will not start")
		return nil
	}

	log.Info("Starting scheduler", "jobCount", len(s.jobs))
	s.scheduler.StartAsync()
	s.started = true

	for name, entry := range s.entries {
		log.Info("Job scheduled", "job", name, "nextRun", entry.NextRun())
	}

	return nil
}

// Stop halts scheduling. Runs already in flight are left to finish.
func (s *SchedulerService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("Stop")

	if !s.started {
		log.Info("Scheduler not started, nothing to stop")
		return nil
	}

	log.Info("Stopping scheduler")
	s.scheduler.Stop()
	s.started = false

	log.Info("Scheduler stopped successfully")
	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *SchedulerService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// GetJobCount returns the number of registered jobs
func (s *SchedulerService) GetJobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
