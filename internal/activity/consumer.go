package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/puppytalk-backend/pkg/events"
	"github.com/angelmondragon/puppytalk-backend/pkg/idempotency"
	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
)

const activityConsumer = "chat-activity"

type recorder interface {
	RecordActivity(ctx context.Context, userID uuid.UUID, chatRoomID *uuid.UUID, at time.Time) error
}

// Consumer records chat activity events published by the chat service.
type Consumer struct {
	tracker      recorder
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a chat activity consumer.
func NewConsumer(tracker recorder, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if tracker == nil {
		return nil, fmt.Errorf("activity tracker required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("activity subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		tracker:      tracker,
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

type chatActivityPayload struct {
	UserID     uuid.UUID  `json:"userId" validate:"required"`
	ChatRoomID *uuid.UUID `json:"chatRoomId,omitempty"`
	At         time.Time  `json:"at"`
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
	if !envelope.EventType.IsActivity() {
		c.logg.Info(logCtx, "skipping non-activity event")
		return processResult{ack: true}
	}

	var payload chatActivityPayload
	if err := events.DecodeData(envelope, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	at := payload.At
	if at.IsZero() {
		at = envelope.OccurredAt
	}
	if at.IsZero() {
		c.logg.Warn(logCtx, "activity event without timestamp")
		return processResult{ack: true}
	}

	logCtx = c.logg.WithUserID(logCtx, payload.UserID.String())
	logCtx = c.logg.WithEventID(logCtx, envelope.EventID.String())
	ran, err := c.idempotency.Do(ctx, activityConsumer, envelope.EventID, func(ctx context.Context) error {
		return c.tracker.RecordActivity(ctx, payload.UserID, payload.ChatRoomID, at)
	})
	switch {
	case errors.Is(err, idempotency.ErrMarkFailed):
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	case err != nil:
		c.logg.Error(logCtx, "failed to record activity", err)
		return processResult{nack: true}
	case !ran:
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}
	c.logg.Debug(logCtx, "activity.recorded")
	return processResult{ack: true}
}
