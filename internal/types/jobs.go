package types

import "time"

// JobResult is what every reconciliation job reports back to the scheduler and to
// manual triggers. Per-item failures are counted here instead of being returned.
type JobResult struct {
	Job        string    `json:"job"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Errors     []string  `json:"errors,omitempty"`
	// LockHeld is set when the run was skipped because another instance holds the job lock
	LockHeld bool `json:"lockHeld,omitempty"`
}

const maxRecordedErrors = 50

func NewJobResult(job string, startedAt time.Time) JobResult {
	return JobResult{Job: job, StartedAt: startedAt}
}

func (r *JobResult) Success() {
	r.Processed++
	r.Succeeded++
}

func (r *JobResult) Skip() {
	r.Processed++
	r.Skipped++
}

func (r *JobResult) Failure(err error) {
	r.Processed++
	r.Failed++
	if len(r.Errors) < maxRecordedErrors {
		r.Errors = append(r.Errors, err.Error())
	}
}

// Merge folds a partial result produced by a worker into r.
func (r *JobResult) Merge(other JobResult) {
	r.Processed += other.Processed
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Skipped += other.Skipped
	for _, msg := range other.Errors {
		if len(r.Errors) >= maxRecordedErrors {
			break
		}
		r.Errors = append(r.Errors, msg)
	}
}

func (r *JobResult) Finish(at time.Time) JobResult {
	r.FinishedAt = at
	return *r
}
