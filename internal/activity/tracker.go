package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/puppytalk-backend/pkg/db"
	"github.com/angelmondragon/puppytalk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/puppytalk-backend/pkg/errors"
	"github.com/angelmondragon/puppytalk-backend/pkg/pagination"
)

// Tracker records the latest activity per (user, room) and per user.
type Tracker struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTracker builds a Tracker. A nil clock defaults to time.Now.
func NewTracker(conn *gorm.DB, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{db: conn, now: now}
}

// RecordActivity raises the stored timestamp for the room and for the user's
// global record to at. Older timestamps leave the records untouched.
// A nil chatRoomID only touches the global record.
func (t *Tracker) RecordActivity(ctx context.Context, userID uuid.UUID, chatRoomID *uuid.UUID, at time.Time) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if at.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "activity time is required")
	}

	rooms := []uuid.UUID{models.GlobalRoomID}
	if chatRoomID != nil && *chatRoomID != models.GlobalRoomID {
		rooms = append(rooms, *chatRoomID)
	}

	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, room := range rooms {
			if err := raise(tx, userID, room, at.UTC(), t.now().UTC()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "record activity")
	}
	return nil
}

// raise is a portable monotonic upsert: insert if missing, then move the
// timestamp forward only.
func raise(tx *gorm.DB, userID, roomID uuid.UUID, at, now time.Time) error {
	row := models.UserActivity{
		UserID:         userID,
		ChatRoomID:     roomID,
		LastActivityAt: at,
		UpdatedAt:      now,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return err
	}
	return tx.Model(&models.UserActivity{}).
		Where("user_id = ? AND chat_room_id = ? AND last_activity_at < ?", userID, roomID, at).
		Updates(map[string]any{
			"last_activity_at": at,
			"updated_at":       now,
		}).Error
}

// LastActivity returns the most recent timestamp for the pair. The boolean is
// false when nothing was ever recorded.
func (t *Tracker) LastActivity(ctx context.Context, userID uuid.UUID, chatRoomID *uuid.UUID) (time.Time, bool, error) {
	room := models.GlobalRoomID
	if chatRoomID != nil {
		room = *chatRoomID
	}

	var row models.UserActivity
	err := t.db.WithContext(ctx).
		Where("user_id = ? AND chat_room_id = ?", userID, room).
		First(&row).Error
	if err != nil {
		if db.IsNotFound(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load last activity")
	}
	return row.LastActivityAt, true, nil
}

// ListIdle pages over global records whose last activity is at or before
// cutoff, ordered by (last_activity_at, user_id).
func (t *Tracker) ListIdle(ctx context.Context, cutoff time.Time, after *pagination.Cursor, limit int) ([]models.UserActivity, error) {
	query := t.db.WithContext(ctx).
		Where("chat_room_id = ?", models.GlobalRoomID).
		Where("last_activity_at <= ?", cutoff.UTC())
	query = pagination.Apply(query, after, "last_activity_at", "user_id")

	var rows []models.UserActivity
	if err := query.Limit(pagination.NormalizeLimit(limit)).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list idle users")
	}
	return rows, nil
}

// LatestRoom returns the user's most recently active room record, or nil
// when the user has no room activity.
func (t *Tracker) LatestRoom(ctx context.Context, userID uuid.UUID) (*models.UserActivity, error) {
	var rows []models.UserActivity
	err := t.db.WithContext(ctx).
		Where("user_id = ? AND chat_room_id <> ?", userID, models.GlobalRoomID).
		Order("last_activity_at DESC").
		Order("chat_room_id ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load latest room")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
