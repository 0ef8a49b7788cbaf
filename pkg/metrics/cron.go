package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "puppytalk"

// JobOutcome labels one execution of a scheduled job.
type JobOutcome string

const (
	JobSucceeded JobOutcome = "success"
	JobFailed    JobOutcome = "failure"
	// JobDeferred means the cycle deadline passed before the job started.
	JobDeferred JobOutcome = "deferred"
)

// CronJobMetrics records scheduled job runs and lock contention.
// A nil or unregistered value discards everything.
type CronJobMetrics struct {
	duration  *prometheus.HistogramVec
	runs      *prometheus.CounterVec
	lockSkips *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron metrics on reg.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled jobs that ran, in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job executions by outcome.",
		}, []string{"job", "outcome"}),
		lockSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_lock_skips_total",
			Help:      "Cycles skipped because another replica held the schedule lock.",
		}, []string{"schedule"}),
	}
	reg.MustRegister(m.duration, m.runs, m.lockSkips)
	return m
}

// ObserveRun counts one job execution. Deferred runs carry no duration.
func (c *CronJobMetrics) ObserveRun(job string, outcome JobOutcome, duration time.Duration) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.runs.WithLabelValues(job, string(outcome)).Inc()
	if outcome != JobDeferred {
		c.duration.WithLabelValues(job).Observe(duration.Seconds())
	}
}

// IncLockSkipped counts a cycle skipped for the named schedule.
func (c *CronJobMetrics) IncLockSkipped(schedule string) {
	if c == nil || c.lockSkips == nil {
		return
	}
	c.lockSkips.WithLabelValues(normalizeLabel(schedule)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
