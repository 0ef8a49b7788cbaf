package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/puppytalk-backend/pkg/db/models"
	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/puppytalk-backend/pkg/errors"
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

type fakeEventStore struct {
	receivedIDs []uuid.UUID
	receivedErr error
	requests    []Request
	enqueueErr  error
}

func (f *fakeEventStore) MarkReceived(_ context.Context, id uuid.UUID) error {
	f.receivedIDs = append(f.receivedIDs, id)
	return f.receivedErr
}

func (f *fakeEventStore) Enqueue(_ context.Context, req Request) (*models.PushNotification, error) {
	f.requests = append(f.requests, req)
	if f.enqueueErr != nil {
		return nil, f.enqueueErr
	}
	return &models.PushNotification{ID: uuid.New()}, nil
}

func newTestConsumer(t *testing.T, store eventStore) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(&memoryIdempotencyStore{keys: map[string]bool{}}, time.Hour)
	if err != nil {
		t.Fatalf("idempotency manager: %v", err)
	}
	return &Consumer{store: store, idempotency: manager, logg: logger.Nop()}
}

func envelopeBytes(t *testing.T, eventID uuid.UUID, eventType enums.EventType, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	body, err := json.Marshal(events.Envelope{
		Version:    1,
		EventID:    eventID,
		EventType:  eventType,
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return body
}

func TestConsumerMarksReceivedOnce(t *testing.T) {
	store := &fakeEventStore{}
	consumer := newTestConsumer(t, store)
	notificationID := uuid.New()
	body := envelopeBytes(t, uuid.New(), enums.EventNotificationReceived, map[string]any{"notificationId": notificationID})

	for i := 0; i < 2; i++ {
		result := consumer.process(context.Background(), "msg-1", body, nil)
		if !result.ack {
			t.Fatalf("expected ack on delivery %d", i+1)
		}
	}
	if len(store.receivedIDs) != 1 || store.receivedIDs[0] != notificationID {
		t.Fatalf("expected one receipt for %s, got %v", notificationID, store.receivedIDs)
	}
}

func TestConsumerAcksIllegalReceipt(t *testing.T) {
	store := &fakeEventStore{receivedErr: illegalTransition(uuid.New(), enums.NotificationStatusFailed, enums.NotificationStatusReceived)}
	consumer := newTestConsumer(t, store)
	body := envelopeBytes(t, uuid.New(), enums.EventNotificationReceived, map[string]any{"notificationId": uuid.New()})

	if result := consumer.process(context.Background(), "msg-1", body, nil); !result.ack {
		t.Fatalf("expected ack for illegal transition")
	}
}

func TestConsumerNacksStorageFailureAndRetries(t *testing.T) {
	store := &fakeEventStore{receivedErr: pkgerrors.Wrap(pkgerrors.CodeStorage, errors.New("db down"), "mark received")}
	consumer := newTestConsumer(t, store)
	body := envelopeBytes(t, uuid.New(), enums.EventNotificationReceived, map[string]any{"notificationId": uuid.New()})

	if result := consumer.process(context.Background(), "msg-1", body, nil); !result.nack {
		t.Fatalf("expected nack for storage failure")
	}

	store.receivedErr = nil
	if result := consumer.process(context.Background(), "msg-1", body, nil); !result.ack {
		t.Fatalf("expected redelivery to be handled")
	}
	if len(store.receivedIDs) != 2 {
		t.Fatalf("expected two attempts, got %d", len(store.receivedIDs))
	}
}

func TestConsumerEnqueuesRequestedNotification(t *testing.T) {
	store := &fakeEventStore{}
	consumer := newTestConsumer(t, store)
	userID := uuid.New()
	body := envelopeBytes(t, uuid.New(), enums.EventNotificationRequested, map[string]any{
		"userId":   userID,
		"type":     enums.NotificationTypeSystemAnnouncement,
		"title":    "New tricks",
		"body":     "Your pet learned new tricks.",
		"payload":  map[string]any{"announcementId": "tricks-2026"},
		"dedupKey": "announcement:tricks-2026",
	})

	if result := consumer.process(context.Background(), "msg-1", body, nil); !result.ack {
		t.Fatalf("expected ack")
	}
	if len(store.requests) != 1 {
		t.Fatalf("expected one enqueue, got %d", len(store.requests))
	}
	req := store.requests[0]
	if req.UserID != userID || req.DedupKey != "announcement:tricks-2026" {
		t.Fatalf("unexpected request %+v", req)
	}
	if _, ok := req.Payload.(SystemAnnouncementPayload); !ok {
		t.Fatalf("expected announcement payload, got %T", req.Payload)
	}
}

func TestConsumerRejectsInactivityRequests(t *testing.T) {
	store := &fakeEventStore{}
	consumer := newTestConsumer(t, store)
	body := envelopeBytes(t, uuid.New(), enums.EventNotificationRequested, map[string]any{
		"userId":  uuid.New(),
		"type":    enums.NotificationTypeInactivityMessage,
		"title":   "t",
		"body":    "b",
		"payload": map[string]any{"reason": "USER_INACTIVE", "idleSince": "2026-03-01T00:00:00Z"},
	})

	if result := consumer.process(context.Background(), "msg-1", body, nil); !result.ack {
		t.Fatalf("expected ack for rejected request")
	}
	if len(store.requests) != 0 {
		t.Fatalf("expected no enqueue")
	}
}

func TestConsumerAcksMalformedEnvelope(t *testing.T) {
	consumer := newTestConsumer(t, &fakeEventStore{})
	if result := consumer.process(context.Background(), "msg-1", []byte("{not json"), nil); !result.ack {
		t.Fatalf("expected ack for malformed envelope")
	}
}

func TestConsumerSkipsActivityEvents(t *testing.T) {
	store := &fakeEventStore{}
	consumer := newTestConsumer(t, store)
	body := envelopeBytes(t, uuid.New(), enums.EventChatMessageSent, map[string]any{"userId": uuid.New()})
	if result := consumer.process(context.Background(), "msg-1", body, nil); !result.ack {
		t.Fatalf("expected ack")
	}
	if len(store.receivedIDs) != 0 || len(store.requests) != 0 {
		t.Fatalf("expected activity event to be ignored")
	}
}
