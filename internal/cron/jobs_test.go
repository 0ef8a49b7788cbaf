package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/puppytalk-backend/internal/dispatch"
	"github.com/angelmondragon/puppytalk-backend/internal/inactivity"
	"github.com/angelmondragon/puppytalk-backend/internal/stats"
	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
)

type fakePipeline struct {
	scans      int
	dispatches int
	reports    int
	err        error
}

func (f *fakePipeline) RunInactivityScan(context.Context) (inactivity.ScanResult, error) {
	f.scans++
	return inactivity.ScanResult{Errors: errors.New("one user failed")}, f.err
}

func (f *fakePipeline) RunDispatch(context.Context) (dispatch.Result, error) {
	f.dispatches++
	return dispatch.Result{}, f.err
}

func (f *fakePipeline) Report(context.Context) (stats.Statistics, error) {
	f.reports++
	return stats.Statistics{}, f.err
}

func pipelineJobs(t *testing.T, p *fakePipeline) []Job {
	t.Helper()
	scan, err := NewInactivityScanJob(p)
	if err != nil {
		t.Fatalf("scan job: %v", err)
	}
	dispatchJob, err := NewDispatchJob(p)
	if err != nil {
		t.Fatalf("dispatch job: %v", err)
	}
	statsJob, err := NewStatisticsJob(p)
	if err != nil {
		t.Fatalf("stats job: %v", err)
	}
	return []Job{scan, dispatchJob, statsJob}
}

func TestPipelineJobsRunTheirOperation(t *testing.T) {
	p := &fakePipeline{}
	jobs := pipelineJobs(t, p)

	for _, job := range jobs {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("%s: unexpected error %v", job.Name(), err)
		}
	}
	if p.scans != 1 || p.dispatches != 1 || p.reports != 1 {
		t.Fatalf("unexpected calls %+v", p)
	}
	if jobs[0].Name() != JobInactivityScan || jobs[1].Name() != JobDispatch || jobs[2].Name() != JobStatistics {
		t.Fatalf("unexpected job names")
	}
}

func TestPipelineJobsPropagateRunFailures(t *testing.T) {
	cause := errors.New("storage unavailable")
	p := &fakePipeline{err: cause}

	for _, job := range pipelineJobs(t, p) {
		err := job.Run(context.Background())
		if !errors.Is(err, cause) {
			t.Fatalf("%s: expected wrapped cause, got %v", job.Name(), err)
		}
	}
}

func TestPipelineJobsRequireDependencies(t *testing.T) {
	if _, err := NewInactivityScanJob(nil); err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewDispatchJob(nil); err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewStatisticsJob(nil); err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewRetentionJob(RetentionJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected error")
	}
}

type fakePurger struct {
	lastCutoff time.Time
	deleted    int64
	err        error
	calls      int
}

func (f *fakePurger) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.lastCutoff = cutoff
	return f.deleted, f.err
}

func newRetentionJob(t *testing.T, store *fakePurger, window time.Duration, now time.Time) *retentionJob {
	t.Helper()
	job, err := NewRetentionJob(RetentionJobParams{Logger: logger.Nop(), Store: store, Window: window})
	if err != nil {
		t.Fatalf("NewRetentionJob: %v", err)
	}
	rj := job.(*retentionJob)
	rj.now = func() time.Time { return now }
	return rj
}

func TestRetentionJobDefaultsToThirtyDays(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	store := &fakePurger{deleted: 42}
	job := newRetentionJob(t, store, 0, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC); !store.lastCutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, store.lastCutoff)
	}
	if store.calls != 1 {
		t.Fatalf("expected one purge, got %d", store.calls)
	}
}

func TestRetentionJobUsesConfiguredWindow(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	store := &fakePurger{}
	job := newRetentionJob(t, store, 7*24*time.Hour, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-7 * 24 * time.Hour); !store.lastCutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, store.lastCutoff)
	}
}

func TestRetentionJobPropagatesErrors(t *testing.T) {
	store := &fakePurger{err: errors.New("boom")}
	job := newRetentionJob(t, store, 0, time.Now())

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
