package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/puppytalk-backend/pkg/db"
	"github.com/angelmondragon/puppytalk-backend/pkg/db/models"
	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/puppytalk-backend/pkg/errors"
)

// ErrDuplicate is returned when a covering notification already holds the dedup key.
var ErrDuplicate = pkgerrors.New(pkgerrors.CodeConflict, "covering notification already exists")

// ErrClaimLost is returned when another dispatcher took over the notification.
var ErrClaimLost = pkgerrors.New(pkgerrors.CodeConflict, "notification claim lost")

// coveringStatuses hold a dedup key against new candidates for the same window.
var coveringStatuses = []enums.NotificationStatus{
	enums.NotificationStatusPending,
	enums.NotificationStatusSent,
	enums.NotificationStatusReceived,
}

var terminalOrDelivered = []enums.NotificationStatus{
	enums.NotificationStatusSent,
	enums.NotificationStatusFailed,
	enums.NotificationStatusReceived,
}

// Store persists push notifications and is the only writer of their status.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore builds a Store. A nil clock defaults to time.Now.
func NewStore(conn *gorm.DB, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{db: conn, now: now}
}

// Claim is the lease a dispatcher holds while delivering one notification.
type Claim struct {
	ID           uuid.UUID
	Token        uuid.UUID
	AttemptCount int
}

// Request enqueues a notification of any type.
type Request struct {
	UserID   uuid.UUID
	Title    string
	Body     string
	Payload  Payload
	DedupKey string
}

// PendingQuery selects notifications ready for dispatch.
type PendingQuery struct {
	// CreatedBefore debounces very recent notifications. Zero disables it.
	CreatedBefore time.Time
	Now           time.Time
	ClaimLease    time.Duration
	Limit         int
}

// Create persists an inactivity notification as PENDING with no attempts.
func (s *Store) Create(ctx context.Context, c Candidate, content Content) (*models.PushNotification, error) {
	payload := InactivityPayload{
		ChatRoomID:  c.ChatRoomID,
		Reason:      c.Reason,
		IdleSince:   c.IdleSince.UTC(),
		IdleSeconds: int64(c.IdleDuration / time.Second),
	}
	return s.Enqueue(ctx, Request{
		UserID:   c.UserID,
		Title:    content.Title,
		Body:     content.Body,
		Payload:  payload,
		DedupKey: c.DedupKey(),
	})
}

// Enqueue validates and persists a notification as PENDING.
func (s *Store) Enqueue(ctx context.Context, req Request) (*models.PushNotification, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode notification payload")
	}

	now := s.now().UTC()
	row := &models.PushNotification{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Type:          req.Payload.Type(),
		Title:         req.Title,
		Body:          req.Body,
		Payload:       raw,
		Status:        enums.NotificationStatusPending,
		AttemptCount:  0,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if p, ok := req.Payload.(InactivityPayload); ok {
		row.ChatRoomID = p.ChatRoomID
	}
	if p, ok := req.Payload.(NewMessagePayload); ok {
		room := p.ChatRoomID
		row.ChatRoomID = &room
	}
	if key := strings.TrimSpace(req.DedupKey); key != "" {
		row.DedupKey = &key
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, ErrDuplicate
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "create notification")
	}
	return row, nil
}

func validateRequest(req Request) error {
	switch {
	case req.UserID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	case strings.TrimSpace(req.Title) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	case strings.TrimSpace(req.Body) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "body is required")
	case req.Payload == nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "payload is required")
	}
	if err := validate.Struct(req.Payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payload")
	}
	return nil
}

// Get loads a notification by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.PushNotification, error) {
	var row models.PushNotification
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load notification")
	}
	return &row, nil
}

// HasCovering reports whether a PENDING, SENT or RECEIVED notification holds
// dedupKey. A NO_DESTINATION failure also covers its window, so a user without
// devices is not retried on every scan.
func (s *Store) HasCovering(ctx context.Context, dedupKey string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.PushNotification{}).
		Where("dedup_key = ?", dedupKey).
		Where(s.db.Where("status IN ?", coveringStatuses).
			Or("status = ? AND failure_reason = ?", enums.NotificationStatusFailed, enums.FailureReasonNoDestination.String())).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "check covering notification")
	}
	return count > 0, nil
}

// FindPending returns dispatchable notifications, oldest first.
func (s *Store) FindPending(ctx context.Context, q PendingQuery) ([]models.PushNotification, error) {
	now := q.Now
	if now.IsZero() {
		now = s.now()
	}
	now = now.UTC()

	query := s.db.WithContext(ctx).
		Where("status = ?", enums.NotificationStatusPending).
		Where("next_attempt_at <= ?", now).
		Where("claim_token IS NULL OR claimed_at <= ?", now.Add(-q.ClaimLease))
	if !q.CreatedBefore.IsZero() {
		query = query.Where("created_at <= ?", q.CreatedBefore.UTC())
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var rows []models.PushNotification
	if err := query.Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "find pending notifications")
	}
	return rows, nil
}

// Claim takes a lease on n. It succeeds only while n is still PENDING with the
// attempt count the caller saw and nobody else holds an unexpired lease.
func (s *Store) Claim(ctx context.Context, n *models.PushNotification, lease time.Duration) (Claim, bool, error) {
	now := s.now().UTC()
	token := uuid.New()

	res := s.db.WithContext(ctx).
		Model(&models.PushNotification{}).
		Where("id = ? AND status = ? AND attempt_count = ?", n.ID, enums.NotificationStatusPending, n.AttemptCount).
		Where("claim_token IS NULL OR claimed_at <= ?", now.Add(-lease)).
		Updates(map[string]any{
			"claim_token": token,
			"claimed_at":  now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return Claim{}, false, pkgerrors.Wrap(pkgerrors.CodeStorage, res.Error, "claim notification")
	}
	if res.RowsAffected == 0 {
		return Claim{}, false, nil
	}
	return Claim{ID: n.ID, Token: token, AttemptCount: n.AttemptCount}, true, nil
}

// Release drops a claim without counting an attempt.
func (s *Store) Release(ctx context.Context, claim Claim) error {
	err := s.db.WithContext(ctx).
		Model(&models.PushNotification{}).
		Where("id = ? AND claim_token = ? AND status = ?", claim.ID, claim.Token, enums.NotificationStatusPending).
		Updates(map[string]any{
			"claim_token": nil,
			"claimed_at":  nil,
			"updated_at":  s.now().UTC(),
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "release notification claim")
	}
	return nil
}

// MarkSent records a successful delivery attempt: PENDING -> SENT.
func (s *Store) MarkSent(ctx context.Context, claim Claim) error {
	now := s.now().UTC()
	return s.transition(ctx, claim, enums.NotificationStatusSent, map[string]any{
		"status":         enums.NotificationStatusSent,
		"attempt_count":  claim.AttemptCount + 1,
		"sent_at":        now,
		"failure_reason": nil,
		"claim_token":    nil,
		"claimed_at":     nil,
		"updated_at":     now,
	})
}

// RecordFailure records a failed delivery attempt. The notification stays
// PENDING until nextAttemptAt while attempts remain, and becomes FAILED with
// reason once maxAttempts is reached. It returns the resulting status.
func (s *Store) RecordFailure(ctx context.Context, claim Claim, reason string, maxAttempts int, nextAttemptAt time.Time) (enums.NotificationStatus, error) {
	now := s.now().UTC()
	attempts := claim.AttemptCount + 1

	target := enums.NotificationStatusPending
	updates := map[string]any{
		"status":          enums.NotificationStatusPending,
		"attempt_count":   attempts,
		"failure_reason":  reason,
		"next_attempt_at": nextAttemptAt.UTC(),
		"claim_token":     nil,
		"claimed_at":      nil,
		"updated_at":      now,
	}
	if attempts >= maxAttempts {
		target = enums.NotificationStatusFailed
		updates["status"] = enums.NotificationStatusFailed
		delete(updates, "next_attempt_at")
	}

	if err := s.transition(ctx, claim, target, updates); err != nil {
		return "", err
	}
	return target, nil
}

// MarkFailed moves a claimed notification straight to FAILED. The attempt
// still counts.
func (s *Store) MarkFailed(ctx context.Context, claim Claim, reason string) error {
	return s.transition(ctx, claim, enums.NotificationStatusFailed, map[string]any{
		"status":         enums.NotificationStatusFailed,
		"attempt_count":  claim.AttemptCount + 1,
		"failure_reason": reason,
		"claim_token":    nil,
		"claimed_at":     nil,
		"updated_at":     s.now().UTC(),
	})
}

// MarkReceived records the client acknowledgement: SENT -> RECEIVED.
func (s *Store) MarkReceived(ctx context.Context, id uuid.UUID) error {
	now := s.now().UTC()
	res := s.db.WithContext(ctx).
		Model(&models.PushNotification{}).
		Where("id = ? AND status IN ?", id, sourcesFor(enums.NotificationStatusReceived)).
		Updates(map[string]any{
			"status":      enums.NotificationStatusReceived,
			"received_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, res.Error, "mark notification received")
	}
	if res.RowsAffected == 0 {
		return s.explainMiss(ctx, id, enums.NotificationStatusReceived)
	}
	return nil
}

func (s *Store) transition(ctx context.Context, claim Claim, target enums.NotificationStatus, updates map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&models.PushNotification{}).
		Where("id = ? AND status IN ?", claim.ID, sourcesFor(target)).
		Where("claim_token = ? AND attempt_count = ?", claim.Token, claim.AttemptCount).
		Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, res.Error, "update notification status")
	}
	if res.RowsAffected == 0 {
		return s.explainMiss(ctx, claim.ID, target)
	}
	return nil
}

// explainMiss turns a zero-row guarded update into the reason it missed.
func (s *Store) explainMiss(ctx context.Context, id uuid.UUID, target enums.NotificationStatus) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(current.Status, target) {
		return illegalTransition(id, current.Status, target)
	}
	return ErrClaimLost
}

// CountByStatus counts notifications in one status.
func (s *Store) CountByStatus(ctx context.Context, status enums.NotificationStatus) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.PushNotification{}).
		Where("status = ?", status).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "count notifications by status")
	}
	return count, nil
}

// CountAll counts every stored notification.
func (s *Store) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.PushNotification{}).Count(&count).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "count notifications")
	}
	return count, nil
}

// DeleteOlderThan removes SENT, FAILED and RECEIVED notifications created
// before cutoff. PENDING rows are never removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", terminalOrDelivered, cutoff.UTC()).
		Delete(&models.PushNotification{})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStorage, res.Error, "delete old notifications")
	}
	return res.RowsAffected, nil
}

// IsDuplicate reports whether err is ErrDuplicate.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
