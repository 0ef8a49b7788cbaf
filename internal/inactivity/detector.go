package inactivity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/puppytalk-backend/internal/notifications"
	"github.com/angelmondragon/puppytalk-backend/pkg/db/models"
	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
	"github.com/angelmondragon/puppytalk-backend/pkg/metrics"
	"github.com/angelmondragon/puppytalk-backend/pkg/pagination"
)

type activitySource interface {
	ListIdle(ctx context.Context, cutoff time.Time, after *pagination.Cursor, limit int) ([]models.UserActivity, error)
	LatestRoom(ctx context.Context, userID uuid.UUID) (*models.UserActivity, error)
}

type contentBuilder interface {
	Build(ctx context.Context, candidate notifications.Candidate) notifications.Content
}

type messageWriter interface {
	AppendPetMessage(ctx context.Context, chatRoomID uuid.UUID, content string) error
}

type notificationStore interface {
	HasCovering(ctx context.Context, dedupKey string) (bool, error)
	Create(ctx context.Context, candidate notifications.Candidate, content notifications.Content) (*models.PushNotification, error)
}

// ScanResult summarizes one detection run.
type ScanResult struct {
	Scanned int
	// Created is the number of candidates that became notifications.
	Created int
	Skipped int
	Failed  int
	// Deferred is true when the run budget ran out before the last page.
	Deferred bool
	Errors   error
}

// DetectorParams configures a Detector.
type DetectorParams struct {
	Activity activitySource
	Content  contentBuilder
	Store    notificationStore
	// Messages is optional. When set, each created notification's body is
	// also posted to the candidate's chat room.
	Messages  messageWriter
	Threshold time.Duration
	BatchSize int
	RunBudget time.Duration
	Metrics   *metrics.PipelineMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

// Detector turns idle users into PENDING inactivity notifications.
type Detector struct {
	activity  activitySource
	content   contentBuilder
	store     notificationStore
	messages  messageWriter
	threshold time.Duration
	batchSize int
	budget    time.Duration
	metrics   *metrics.PipelineMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewDetector(params DetectorParams) (*Detector, error) {
	if params.Activity == nil {
		return nil, errors.New("activity source required")
	}
	if params.Content == nil {
		return nil, errors.New("content builder required")
	}
	if params.Store == nil {
		return nil, errors.New("notification store required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Threshold <= 0 {
		return nil, errors.New("threshold must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Detector{
		activity:  params.Activity,
		content:   params.Content,
		store:     params.Store,
		messages:  params.Messages,
		threshold: params.Threshold,
		batchSize: pagination.NormalizeLimit(params.BatchSize),
		budget:    params.RunBudget,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// Run scans every user idle for at least the threshold. Only a failure to
// list the first page aborts the run; per-user failures are collected in
// ScanResult.Errors.
func (d *Detector) Run(ctx context.Context) (ScanResult, error) {
	var result ScanResult
	start := d.now().UTC()
	cutoff := start.Add(-d.threshold)

	var cursor *pagination.Cursor
	for page := 0; ; page++ {
		rows, err := d.activity.ListIdle(ctx, cutoff, cursor, d.batchSize)
		if err != nil {
			if page == 0 {
				return result, fmt.Errorf("list idle users: %w", err)
			}
			result.Errors = multierr.Append(result.Errors, fmt.Errorf("list idle users: %w", err))
			break
		}

		for _, row := range rows {
			if d.budgetSpent(start) || ctx.Err() != nil {
				result.Deferred = true
				d.log(ctx, start, result)
				return result, nil
			}
			result.Scanned++
			d.scanUser(ctx, start, row, &result)
		}

		if len(rows) < d.batchSize {
			break
		}
		last := rows[len(rows)-1]
		cursor = &pagination.Cursor{At: last.LastActivityAt, ID: last.UserID}
	}

	d.log(ctx, start, result)
	return result, nil
}

func (d *Detector) budgetSpent(start time.Time) bool {
	return d.budget > 0 && d.now().Sub(start) >= d.budget
}

func (d *Detector) scanUser(ctx context.Context, now time.Time, row models.UserActivity, result *ScanResult) {
	logCtx := d.logg.WithUserID(ctx, row.UserID.String())

	outcome, created, err := d.evaluate(ctx, logCtx, now, row)
	d.metrics.IncCandidate(outcome)
	switch outcome {
	case metrics.CandidateCreated:
		result.Created++
		d.logg.Info(d.logg.WithNotificationID(logCtx, created.ID.String()), "inactivity.candidate_created")
	case metrics.CandidateSkipped:
		result.Skipped++
	default:
		result.Failed++
		result.Errors = multierr.Append(result.Errors, fmt.Errorf("user %s: %w", row.UserID, err))
		d.logg.Error(logCtx, "inactivity.candidate_failed", err)
	}
}

// evaluate handles one idle user. A panic fails only this user.
func (d *Detector) evaluate(ctx, logCtx context.Context, now time.Time, row models.UserActivity) (outcome string, created *models.PushNotification, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, created = metrics.CandidateFailed, nil
			err = fmt.Errorf("panic during inactivity scan: %v", r)
			d.logg.Error(logCtx, "inactivity.panic", err)
		}
	}()

	candidate, err := d.candidateFor(ctx, now, row)
	if err != nil {
		return metrics.CandidateFailed, nil, err
	}
	covered, err := d.store.HasCovering(ctx, candidate.DedupKey())
	if err != nil {
		return metrics.CandidateFailed, nil, err
	}
	if covered {
		return metrics.CandidateSkipped, nil, nil
	}

	content := d.content.Build(ctx, candidate)
	created, err = d.store.Create(ctx, candidate, content)
	switch {
	case notifications.IsDuplicate(err):
		return metrics.CandidateSkipped, nil, nil
	case err != nil:
		return metrics.CandidateFailed, nil, err
	}
	d.postToRoom(logCtx, candidate, content)
	return metrics.CandidateCreated, created, nil
}

// postToRoom leaves the body in the chat room as a pet message so the push
// opens onto it. The notification stands even when this write fails.
func (d *Detector) postToRoom(ctx context.Context, candidate notifications.Candidate, content notifications.Content) {
	if d.messages == nil || candidate.ChatRoomID == nil {
		return
	}
	if err := d.messages.AppendPetMessage(ctx, *candidate.ChatRoomID, content.Body); err != nil {
		d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "inactivity.chat_message_failed")
	}
}

func (d *Detector) candidateFor(ctx context.Context, now time.Time, row models.UserActivity) (notifications.Candidate, error) {
	room, err := d.activity.LatestRoom(ctx, row.UserID)
	if err != nil {
		return notifications.Candidate{}, err
	}
	candidate := notifications.Candidate{
		UserID:       row.UserID,
		Reason:       enums.CandidateReasonUserInactive,
		IdleSince:    row.LastActivityAt.UTC(),
		IdleDuration: now.Sub(row.LastActivityAt),
	}
	if room != nil {
		candidate.ChatRoomID = room.RoomID()
	}
	return candidate, nil
}

func (d *Detector) log(ctx context.Context, start time.Time, result ScanResult) {
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"event":       "inactivity.scan",
		"scanned":     result.Scanned,
		"created":     result.Created,
		"skipped":     result.Skipped,
		"failed":      result.Failed,
		"deferred":    result.Deferred,
		"duration_ms": d.now().Sub(start).Milliseconds(),
	})
	if result.Errors != nil {
		d.logg.Warn(d.logg.WithField(logCtx, "errors", result.Errors.Error()), "inactivity scan finished with errors")
		return
	}
	d.logg.Info(logCtx, "inactivity scan complete")
}
