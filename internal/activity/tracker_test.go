package activity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/puppytalk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/puppytalk-backend/pkg/pagination"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	return NewTracker(dbtest.Open(t), func() time.Time { return base })
}

func TestRecordActivityKeepsMaximum(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()
	userID := uuid.New()
	room := uuid.New()

	require.NoError(t, tracker.RecordActivity(ctx, userID, &room, base.Add(-2*time.Hour)))
	require.NoError(t, tracker.RecordActivity(ctx, userID, &room, base.Add(-1*time.Hour)))
	require.NoError(t, tracker.RecordActivity(ctx, userID, &room, base.Add(-3*time.Hour)))

	last, ok, err := tracker.LastActivity(ctx, userID, &room)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, last.Equal(base.Add(-1*time.Hour)), "got %s", last)

	global, ok, err := tracker.LastActivity(ctx, userID, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, global.Equal(base.Add(-1*time.Hour)), "got %s", global)
}

func TestRecordActivityGlobalSpansRooms(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()
	userID := uuid.New()
	roomA, roomB := uuid.New(), uuid.New()

	require.NoError(t, tracker.RecordActivity(ctx, userID, &roomA, base.Add(-5*time.Hour)))
	require.NoError(t, tracker.RecordActivity(ctx, userID, &roomB, base.Add(-2*time.Hour)))

	a, _, err := tracker.LastActivity(ctx, userID, &roomA)
	require.NoError(t, err)
	require.True(t, a.Equal(base.Add(-5*time.Hour)))

	global, _, err := tracker.LastActivity(ctx, userID, nil)
	require.NoError(t, err)
	require.True(t, global.Equal(base.Add(-2*time.Hour)))

	latest, err := tracker.LatestRoom(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, roomB, latest.ChatRoomID)
}

func TestLastActivityUnknown(t *testing.T) {
	tracker := newTestTracker(t)
	_, ok, err := tracker.LastActivity(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	require.False(t, ok)

	latest, err := tracker.LatestRoom(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, latest)
}

func TestRecordActivityValidates(t *testing.T) {
	tracker := newTestTracker(t)
	require.Error(t, tracker.RecordActivity(context.Background(), uuid.Nil, nil, base))
	require.Error(t, tracker.RecordActivity(context.Background(), uuid.New(), nil, time.Time{}))
}

func TestListIdleInclusiveCutoffAndPaging(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()
	cutoff := base.Add(-24 * time.Hour)

	atCutoff := uuid.New()
	older := uuid.New()
	fresh := uuid.New()
	require.NoError(t, tracker.RecordActivity(ctx, atCutoff, nil, cutoff))
	require.NoError(t, tracker.RecordActivity(ctx, older, nil, cutoff.Add(-time.Hour)))
	require.NoError(t, tracker.RecordActivity(ctx, fresh, nil, cutoff.Add(time.Second)))

	page, err := tracker.ListIdle(ctx, cutoff, nil, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, older, page[0].UserID)

	next := &pagination.Cursor{At: page[0].LastActivityAt, ID: page[0].UserID}
	page, err = tracker.ListIdle(ctx, cutoff, next, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, atCutoff, page[0].UserID)
	require.True(t, page[0].IsGlobal())
}
