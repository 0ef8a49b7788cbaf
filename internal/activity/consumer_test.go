package activity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
	"github.com/angelmondragon/puppytalk-backend/pkg/events"
	"github.com/angelmondragon/puppytalk-backend/pkg/idempotency"
	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
)

type memoryIdempotencyStore struct {
	keys map[string]bool
}

func (m *memoryIdempotencyStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "pt:idempotency:" + scope + ":" + id
}

func (m *memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

type recordedActivity struct {
	userID uuid.UUID
	roomID *uuid.UUID
	at     time.Time
}

type fakeRecorder struct {
	calls []recordedActivity
	err   error
}

func (f *fakeRecorder) RecordActivity(_ context.Context, userID uuid.UUID, roomID *uuid.UUID, at time.Time) error {
	f.calls = append(f.calls, recordedActivity{userID: userID, roomID: roomID, at: at})
	return f.err
}

func newTestConsumer(t *testing.T, rec recorder) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(&memoryIdempotencyStore{keys: map[string]bool{}}, time.Hour)
	if err != nil {
		t.Fatalf("idempotency manager: %v", err)
	}
	return &Consumer{tracker: rec, idempotency: manager, logg: logger.Nop()}
}

func activityEnvelope(t *testing.T, eventType enums.EventType, occurredAt time.Time, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	body, err := json.Marshal(events.Envelope{Version: 1, EventID: uuid.New(), EventType: eventType, OccurredAt: occurredAt, Data: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return body
}

func TestConsumerRecordsMessageSent(t *testing.T) {
	rec := &fakeRecorder{}
	consumer := newTestConsumer(t, rec)
	userID, roomID := uuid.New(), uuid.New()
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	body := activityEnvelope(t, enums.EventChatMessageSent, at.Add(time.Minute), map[string]any{
		"userId":     userID,
		"chatRoomId": roomID,
		"at":         at,
	})

	for i := 0; i < 2; i++ {
		if result := consumer.process(context.Background(), "msg-1", body, nil); !result.ack {
			t.Fatalf("expected ack")
		}
	}
	if len(rec.calls) != 1 {
		t.Fatalf("expected one recorded activity, got %d", len(rec.calls))
	}
	call := rec.calls[0]
	if call.userID != userID || call.roomID == nil || *call.roomID != roomID || !call.at.Equal(at) {
		t.Fatalf("unexpected call %+v", call)
	}
}

func TestConsumerFallsBackToOccurredAt(t *testing.T) {
	rec := &fakeRecorder{}
	consumer := newTestConsumer(t, rec)
	occurred := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	body := activityEnvelope(t, enums.EventChatRoomOpened, occurred, map[string]any{"userId": uuid.New()})

	if result := consumer.process(context.Background(), "msg-1", body, nil); !result.ack {
		t.Fatalf("expected ack")
	}
	if len(rec.calls) != 1 || !rec.calls[0].at.Equal(occurred) || rec.calls[0].roomID != nil {
		t.Fatalf("unexpected calls %+v", rec.calls)
	}
}

func TestConsumerNacksStorageFailure(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	consumer := newTestConsumer(t, rec)
	body := activityEnvelope(t, enums.EventChatMessageSent, time.Now().UTC(), map[string]any{"userId": uuid.New()})

	if result := consumer.process(context.Background(), "msg-1", body, nil); !result.nack {
		t.Fatalf("expected nack")
	}
	rec.err = nil
	if result := consumer.process(context.Background(), "msg-1", body, nil); !result.ack {
		t.Fatalf("expected redelivery to succeed")
	}
	if len(rec.calls) != 2 {
		t.Fatalf("expected two attempts, got %d", len(rec.calls))
	}
}

func TestConsumerAcksInvalidPayload(t *testing.T) {
	rec := &fakeRecorder{}
	consumer := newTestConsumer(t, rec)
	body := activityEnvelope(t, enums.EventChatMessageSent, time.Now().UTC(), map[string]any{"chatRoomId": uuid.New()})

	if result := consumer.process(context.Background(), "msg-1", body, nil); !result.ack {
		t.Fatalf("expected ack")
	}
	if len(rec.calls) != 0 {
		t.Fatalf("expected no activity recorded")
	}
}

func TestConsumerUsesAttributeEventType(t *testing.T) {
	rec := &fakeRecorder{}
	consumer := newTestConsumer(t, rec)
	body := activityEnvelope(t, "", time.Now().UTC(), map[string]any{"userId": uuid.New()})
	attrs := map[string]string{events.AttributeEventType: string(enums.EventChatRoomOpened)}

	if result := consumer.process(context.Background(), "msg-1", body, attrs); !result.ack {
		t.Fatalf("expected ack")
	}
	if len(rec.calls) != 1 {
		t.Fatalf("expected activity from attribute-typed event")
	}
}
