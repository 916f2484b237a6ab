package metrics

import (
	"cleanmarket/internal/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricsNamespace = "cleanmarket"

// Collector is a prometheus.Collector for the booking core. A nil *Collector is valid
// and records nothing.
type Collector struct {
	transitions    *prometheus.CounterVec
	jobRuns        *prometheus.CounterVec
	jobItems       *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	fraudFlags     *prometheus.CounterVec
	walletPostings *prometheus.CounterVec
	eventsSeen     *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "booking_transitions_total",
				Help:      "Applied booking status transitions.",
			}, []string{"from", "to"},
		),
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "job_runs_total",
				Help:      "Reconciliation job runs by outcome.",
			}, []string{"job", "outcome"},
		),
		jobItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "job_items_total",
				Help:      "Items handled by reconciliation jobs.",
			}, []string{"job", "result"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "job_duration_seconds",
				Help:      "Wall time of reconciliation job runs.",
				Buckets:   []float64{0.1, 1, 10, 60, 300, 900, 3600},
			}, []string{"job"},
		),
		fraudFlags: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "fraud_flags_total",
				Help:      "Fraud flags raised.",
			}, []string{"type"},
		),
		walletPostings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "wallet_postings_total",
				Help:      "Wallet transactions posted.",
			}, []string{"type"},
		),
		eventsSeen: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "domain_events_received_total",
				Help:      "Domain events received from the event bus, from any instance.",
			}, []string{"channel", "type"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.transitions.Describe(ch)
	c.jobRuns.Describe(ch)
	c.jobItems.Describe(ch)
	c.jobDuration.Describe(ch)
	c.fraudFlags.Describe(ch)
	c.walletPostings.Describe(ch)
	c.eventsSeen.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.transitions.Collect(ch)
	c.jobRuns.Collect(ch)
	c.jobItems.Collect(ch)
	c.jobDuration.Collect(ch)
	c.fraudFlags.Collect(ch)
	c.walletPostings.Collect(ch)
	c.eventsSeen.Collect(ch)
}

func (c *Collector) TransitionApplied(from, to string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(from, to).Inc()
}

// JobFinished records one run. err is the job-level error, if any.
func (c *Collector) JobFinished(result types.JobResult, err error) {
	if c == nil {
		return
	}

	outcome := "completed"
	switch {
	case err != nil:
		outcome = "failed"
	case result.LockHeld:
		outcome = "lock_held"
	}
	c.jobRuns.WithLabelValues(result.Job, outcome).Inc()

	c.jobItems.WithLabelValues(result.Job, "succeeded").Add(float64(result.Succeeded))
	c.jobItems.WithLabelValues(result.Job, "failed").Add(float64(result.Failed))
	c.jobItems.WithLabelValues(result.Job, "skipped").Add(float64(result.Skipped))

	if !result.FinishedAt.IsZero() {
		c.jobDuration.WithLabelValues(result.Job).Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	}
}

func (c *Collector) FlagRaised(flagType string) {
	if c == nil {
		return
	}
	c.fraudFlags.WithLabelValues(flagType).Inc()
}

func (c *Collector) WalletPosted(transactionType string) {
	if c == nil {
		return
	}
	c.walletPostings.WithLabelValues(transactionType).Inc()
}

func (c *Collector) EventReceived(channel, eventType string) {
	if c == nil {
		return
	}
	c.eventsSeen.WithLabelValues(channel, eventType).Inc()
}

// NewRegistry returns a registry holding c plus the process and Go runtime collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}
