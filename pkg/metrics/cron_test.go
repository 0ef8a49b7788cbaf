package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsCountsRunsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "notification-dispatch"
	metrics.ObserveRun(job, JobSucceeded, 250*time.Millisecond)
	metrics.ObserveRun(job, JobFailed, time.Second)
	metrics.ObserveRun(job, JobDeferred, 0)
	metrics.IncLockSkipped("dispatch")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	for _, outcome := range []JobOutcome{JobSucceeded, JobFailed, JobDeferred} {
		got, err := fetchRunCount(mfs, job, outcome)
		if err != nil {
			t.Fatalf("fetch %s: %v", outcome, err)
		}
		if got != 1 {
			t.Fatalf("expected %s=1, got %f", outcome, got)
		}
	}

	if got, err := fetchHistogramSum(mfs, "puppytalk_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got != 1.25 {
		t.Fatalf("expected duration sum 1.25 (deferred runs excluded), got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "puppytalk_schedule_lock_skips_total", "schedule", "dispatch"); err != nil {
		t.Fatalf("fetch lock skips: %v", err)
	} else if got != 1 {
		t.Fatalf("expected one lock skip, got %f", got)
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var metrics *CronJobMetrics
	metrics.ObserveRun("job", JobSucceeded, time.Second)
	metrics.IncLockSkipped("schedule")

	unregistered := NewCronJobMetrics(nil)
	unregistered.ObserveRun("", JobFailed, time.Second)
	unregistered.IncLockSkipped("")
}

func fetchRunCount(mfs []*dto.MetricFamily, job string, outcome JobOutcome) (float64, error) {
	mf := findMetricFamily(mfs, "puppytalk_job_runs_total")
	if mf == nil {
		return 0, fmt.Errorf("job runs metric not found")
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), "job", job) && matchesLabel(metric.GetLabel(), "outcome", string(outcome)) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("no run counter for %s/%s", job, outcome)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func fetchGaugeValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetGauge().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("gauge %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
