package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
	"github.com/angelmondragon/puppytalk-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

type ServiceParams struct {
	// Name identifies the schedule in logs and metrics, e.g. "dispatch".
	Name     string
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Interval defaults to 24h.
	Interval time.Duration
}

// Service runs one schedule: every tick it takes the schedule lock and runs
// the registry's jobs in order. The first cycle starts immediately.
type Service struct {
	name     string
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

// CycleReport summarizes one cycle. Skipped is set when another replica held
// the lock and nothing ran.
type CycleReport struct {
	Skipped  bool
	Ran      []string
	Failed   []string
	Deferred []string
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	case params.Registry == nil:
		return nil, errors.New("registry required")
	}
	s := &Service{
		name:     params.Name,
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
	}
	if s.name == "" {
		s.name = "cron"
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run blocks until ctx is canceled and returns ctx.Err().
func (s *Service) Run(ctx context.Context) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"schedule": s.name,
		"interval": s.interval.String(),
	})
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "schedule stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	report, err := s.runCycle(ctx)
	if err != nil {
		s.logg.Error(ctx, "scheduled cycle failed", err)
		return
	}
	if report.Skipped {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs_ran":      len(report.Ran),
		"jobs_failed":   report.Failed,
		"jobs_deferred": report.Deferred,
	}), "scheduled cycle complete")
}

// runCycle runs every job once while holding the schedule lock. The cycle
// deadline is the lock TTL so a run never outlives its lease.
func (s *Service) runCycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport

	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return report, fmt.Errorf("acquire schedule lock: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another worker holds the schedule lock; skipping this cycle")
		s.metrics.IncLockSkipped(s.name)
		report.Skipped = true
		return report, nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "failed to release schedule lock", err)
		}
	}()

	cycleCtx, cancel := context.WithTimeout(ctx, s.lock.TTL())
	defer cancel()

	for _, job := range s.registry.Jobs() {
		name := job.Name()
		if cycleCtx.Err() != nil {
			s.logg.Warn(s.logg.WithJob(cycleCtx, name), "cycle deadline reached; job left for next tick")
			s.metrics.ObserveRun(name, metrics.JobDeferred, 0)
			report.Deferred = append(report.Deferred, name)
			continue
		}
		report.Ran = append(report.Ran, name)
		if !s.runJob(cycleCtx, job) {
			report.Failed = append(report.Failed, name)
		}
	}
	return report, nil
}

func (s *Service) runJob(ctx context.Context, job Job) bool {
	ctx = s.logg.WithJob(ctx, job.Name())
	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)

	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		s.metrics.ObserveRun(job.Name(), metrics.JobFailed, elapsed)
		return false
	}
	s.logg.Debug(ctx, "job completed")
	s.metrics.ObserveRun(job.Name(), metrics.JobSucceeded, elapsed)
	return true
}
