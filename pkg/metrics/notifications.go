package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Candidate results.
const (
	CandidateCreated = "created"
	CandidateSkipped = "skipped"
	CandidateFailed  = "failed"
)

// Content sources.
const (
	ContentSourceAI       = "ai"
	ContentSourceFallback = "fallback"
)

// Dispatch outcomes.
const (
	DispatchSent          = "sent"
	DispatchRetried       = "retried"
	DispatchFailed        = "failed"
	DispatchNoDestination = "no_destination"
	DispatchSkipped       = "skipped"
	DispatchErrored       = "errored"
)

// PipelineMetrics tracks the notification pipeline: candidates detected,
// content generated, and delivery outcomes.
type PipelineMetrics struct {
	candidates *prometheus.CounterVec
	content    *prometheus.CounterVec
	dispatch   *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	sendTime   prometheus.Histogram
	byStatus   *prometheus.GaugeVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	candidates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inactivity_candidates_total",
		Help:      "Inactivity candidates by scan result.",
	}, []string{"result"})
	content := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_content_total",
		Help:      "Built notification contents by source.",
	}, []string{"source"})
	dispatch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_dispatch_total",
		Help:      "Dispatch attempts by outcome.",
	}, []string{"outcome"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "push_token_deliveries_total",
		Help:      "Per-token push deliveries by result.",
	}, []string{"result"})
	sendTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "push_send_duration_seconds",
		Help:      "Latency of a single push transport call.",
		Buckets:   prometheus.DefBuckets,
	})
	byStatus := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notifications",
		Help:      "Stored notifications by status.",
	}, []string{"status"})
	reg.MustRegister(candidates, content, dispatch, deliveries, sendTime, byStatus)
	return &PipelineMetrics{
		candidates: candidates,
		content:    content,
		dispatch:   dispatch,
		deliveries: deliveries,
		sendTime:   sendTime,
		byStatus:   byStatus,
	}
}

func (m *PipelineMetrics) IncCandidate(result string) {
	if m == nil || m.candidates == nil {
		return
	}
	m.candidates.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *PipelineMetrics) IncContent(source string) {
	if m == nil || m.content == nil {
		return
	}
	m.content.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *PipelineMetrics) IncDispatch(outcome string) {
	if m == nil || m.dispatch == nil {
		return
	}
	m.dispatch.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveDelivery records one push transport call.
func (m *PipelineMetrics) ObserveDelivery(ok bool, duration time.Duration) {
	if m == nil || m.deliveries == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.deliveries.WithLabelValues(result).Inc()
	m.sendTime.Observe(duration.Seconds())
}

// SetStatusCount publishes the latest count for a notification status.
func (m *PipelineMetrics) SetStatusCount(status string, count int64) {
	if m == nil || m.byStatus == nil {
		return
	}
	m.byStatus.WithLabelValues(normalizeLabel(status)).Set(float64(count))
}
