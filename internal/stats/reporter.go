package stats

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
	"github.com/angelmondragon/puppytalk-backend/pkg/metrics"
)

type counter interface {
	CountByStatus(ctx context.Context, status enums.NotificationStatus) (int64, error)
	CountAll(ctx context.Context) (int64, error)
}

// Statistics is a point-in-time view of notification delivery.
type Statistics struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
	Received int64 `json:"received"`
	// SuccessRate is the delivered share (SENT or RECEIVED) of all notifications, in percent.
	SuccessRate float64 `json:"successRate"`
	// ReceiptRate is the RECEIVED share of delivered notifications, in percent.
	ReceiptRate float64 `json:"receiptRate"`
}

// Reporter reads delivery statistics. It never writes.
type Reporter struct {
	store   counter
	metrics *metrics.PipelineMetrics
	logg    *logger.Logger
}

func NewReporter(store counter, pipelineMetrics *metrics.PipelineMetrics, logg *logger.Logger) (*Reporter, error) {
	if store == nil {
		return nil, errors.New("notification store required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Reporter{store: store, metrics: pipelineMetrics, logg: logg}, nil
}

// Snapshot counts notifications by status.
func (r *Reporter) Snapshot(ctx context.Context) (Statistics, error) {
	var s Statistics
	counts := map[enums.NotificationStatus]*int64{
		enums.NotificationStatusPending:  &s.Pending,
		enums.NotificationStatusSent:     &s.Sent,
		enums.NotificationStatusFailed:   &s.Failed,
		enums.NotificationStatusReceived: &s.Received,
	}
	for _, status := range enums.NotificationStatuses() {
		n, err := r.store.CountByStatus(ctx, status)
		if err != nil {
			return Statistics{}, fmt.Errorf("count %s notifications: %w", status, err)
		}
		*counts[status] = n
	}
	total, err := r.store.CountAll(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("count notifications: %w", err)
	}
	s.Total = total

	delivered := s.Sent + s.Received
	s.SuccessRate = percent(delivered, s.Total)
	s.ReceiptRate = percent(s.Received, delivered)
	return s, nil
}

// Report takes a snapshot, publishes it to the status gauges and logs it.
func (r *Reporter) Report(ctx context.Context) (Statistics, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return s, err
	}
	r.metrics.SetStatusCount(string(enums.NotificationStatusPending), s.Pending)
	r.metrics.SetStatusCount(string(enums.NotificationStatusSent), s.Sent)
	r.metrics.SetStatusCount(string(enums.NotificationStatusFailed), s.Failed)
	r.metrics.SetStatusCount(string(enums.NotificationStatusReceived), s.Received)

	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"event":        "notification.statistics",
		"total":        s.Total,
		"pending":      s.Pending,
		"sent":         s.Sent,
		"failed":       s.Failed,
		"received":     s.Received,
		"success_rate": s.SuccessRate,
		"receipt_rate": s.ReceiptRate,
	}), "notification statistics")
	return s, nil
}

func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}
