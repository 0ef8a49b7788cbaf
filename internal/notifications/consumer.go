package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/puppytalk-backend/pkg/db/models"
	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/puppytalk-backend/pkg/errors"
	"github.com/angelmondragon/puppytalk-backend/pkg/events"
	"github.com/angelmondragon/puppytalk-backend/pkg/idempotency"
	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
)

const notificationEventsConsumer = "notification-events"

type eventStore interface {
	MarkReceived(ctx context.Context, id uuid.UUID) error
	Enqueue(ctx context.Context, req Request) (*models.PushNotification, error)
}

// Consumer applies client receipts and enqueue requests published on the
// notification events subscription.
type Consumer struct {
	store        eventStore
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a notification events consumer.
func NewConsumer(store eventStore, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if store == nil {
		return nil, fmt.Errorf("notification store required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		store:        store,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg.ID, msg.Data, msg.Attributes)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

type receivedPayload struct {
	NotificationID uuid.UUID `json:"notificationId" validate:"required"`
}

type requestedPayload struct {
	UserID   uuid.UUID              `json:"userId" validate:"required"`
	Type     enums.NotificationType `json:"type" validate:"required"`
	Title    string                 `json:"title" validate:"required,max=255"`
	Body     string                 `json:"body" validate:"required"`
	Payload  json.RawMessage        `json:"payload" validate:"required"`
	DedupKey string                 `json:"dedupKey,omitempty"`
}

func (c *Consumer) process(ctx context.Context, messageID string, data []byte, attributes map[string]string) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": attributes[events.AttributeEventType],
	})

	envelope, err := events.Decode(data, attributes)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	if envelope.EventType != enums.EventNotificationReceived && envelope.EventType != enums.EventNotificationRequested {
		c.logg.Info(logCtx, "skipping non-notification event")
		return processResult{ack: true}
	}
	logCtx = c.logg.WithEventID(logCtx, envelope.EventID.String())

	var handleErr error
	ran, err := c.idempotency.Do(ctx, notificationEventsConsumer, envelope.EventID, func(ctx context.Context) error {
		switch envelope.EventType {
		case enums.EventNotificationReceived:
			handleErr = c.handleReceived(ctx, envelope, logCtx)
		case enums.EventNotificationRequested:
			handleErr = c.handleRequested(ctx, envelope, logCtx)
		}
		// only retryable failures give the event back for redelivery
		if pkgerrors.IsRetryable(handleErr) {
			return handleErr
		}
		return nil
	})
	switch {
	case errors.Is(err, idempotency.ErrMarkFailed):
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	case err != nil:
		c.logg.Error(logCtx, "notification event handling failed", err)
		return processResult{nack: true}
	case !ran:
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	case handleErr != nil:
		c.logg.Warn(c.logg.WithField(logCtx, "error", handleErr.Error()), "notification event dropped")
	}
	return processResult{ack: true}
}

func (c *Consumer) handleReceived(ctx context.Context, envelope events.Envelope, logCtx context.Context) error {
	var payload receivedPayload
	if err := events.DecodeData(envelope, &payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid receipt payload")
	}
	logCtx = c.logg.WithNotificationID(logCtx, payload.NotificationID.String())

	if err := c.store.MarkReceived(ctx, payload.NotificationID); err != nil {
		return err
	}
	c.logg.Info(logCtx, "notification.received")
	return nil
}

func (c *Consumer) handleRequested(ctx context.Context, envelope events.Envelope, logCtx context.Context) error {
	var payload requestedPayload
	if err := events.DecodeData(envelope, &payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request payload")
	}
	if payload.Type == enums.NotificationTypeInactivityMessage {
		return pkgerrors.New(pkgerrors.CodeValidation, "inactivity notifications are created by the detector")
	}
	typed, err := ParsePayload(payload.Type, payload.Payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification payload")
	}

	row, err := c.store.Enqueue(ctx, Request{
		UserID:   payload.UserID,
		Title:    payload.Title,
		Body:     payload.Body,
		Payload:  typed,
		DedupKey: payload.DedupKey,
	})
	if err != nil {
		if IsDuplicate(err) {
			c.logg.Info(logCtx, "notification already requested")
			return nil
		}
		return err
	}
	c.logg.Info(c.logg.WithNotificationID(logCtx, row.ID.String()), "notification.enqueued")
	return nil
}
