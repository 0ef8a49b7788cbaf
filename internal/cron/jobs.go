package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/puppytalk-backend/internal/dispatch"
	"github.com/angelmondragon/puppytalk-backend/internal/inactivity"
	"github.com/angelmondragon/puppytalk-backend/internal/stats"
	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
)

const (
	JobInactivityScan = "inactivity-scan"
	JobDispatch       = "notification-dispatch"
	JobStatistics     = "notification-statistics"
	JobRetention      = "notification-retention"

	defaultRetentionWindow = 30 * 24 * time.Hour
)

type inactivityScanner interface {
	RunInactivityScan(ctx context.Context) (inactivity.ScanResult, error)
}

type dispatchRunner interface {
	RunDispatch(ctx context.Context) (dispatch.Result, error)
}

type statisticsReporter interface {
	Report(ctx context.Context) (stats.Statistics, error)
}

type retentionPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// funcJob adapts a pipeline operation to Job. The operation logs its own
// outcome; the job only wraps the error for the cron metrics.
type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j funcJob) Name() string { return j.name }

func (j funcJob) Run(ctx context.Context) error {
	if err := j.run(ctx); err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	return nil
}

// NewInactivityScanJob runs one inactivity scan per tick. Per-user failures
// are logged by the detector and do not fail the job.
func NewInactivityScanJob(scanner inactivityScanner) (Job, error) {
	if scanner == nil {
		return nil, fmt.Errorf("inactivity scanner required")
	}
	return funcJob{name: JobInactivityScan, run: func(ctx context.Context) error {
		_, err := scanner.RunInactivityScan(ctx)
		return err
	}}, nil
}

// NewDispatchJob runs one dispatch pass per tick.
func NewDispatchJob(runner dispatchRunner) (Job, error) {
	if runner == nil {
		return nil, fmt.Errorf("dispatch runner required")
	}
	return funcJob{name: JobDispatch, run: func(ctx context.Context) error {
		_, err := runner.RunDispatch(ctx)
		return err
	}}, nil
}

// NewStatisticsJob logs delivery statistics and refreshes the status gauges.
func NewStatisticsJob(reporter statisticsReporter) (Job, error) {
	if reporter == nil {
		return nil, fmt.Errorf("statistics reporter required")
	}
	return funcJob{name: JobStatistics, run: func(ctx context.Context) error {
		_, err := reporter.Report(ctx)
		return err
	}}, nil
}

type RetentionJobParams struct {
	Logger *logger.Logger
	Store  retentionPurger
	// Window defaults to 30 days.
	Window time.Duration
}

// NewRetentionJob purges finished notifications older than the window.
// PENDING rows are never purged.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("notification store required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultRetentionWindow
	}
	return &retentionJob{
		logg:   params.Logger,
		store:  params.Store,
		window: window,
		now:    time.Now,
	}, nil
}

type retentionJob struct {
	logg   *logger.Logger
	store  retentionPurger
	window time.Duration
	now    func() time.Time
}

func (j *retentionJob) Name() string { return JobRetention }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	deleted, err := j.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", JobRetention, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"window":       j.window.String(),
		"rows_deleted": deleted,
	}), "notification retention complete")
	return nil
}
