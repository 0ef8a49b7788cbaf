package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
)

// AttributeEventType is the Pub/Sub attribute carrying the event type.
const AttributeEventType = "event_type"

// Envelope is the stable structure of every inbound event.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    uuid.UUID       `json:"eventId" validate:"required"`
	EventType  enums.EventType `json:"eventType,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode parses an envelope. When the body carries no event type the
// attribute value is used.
func Decode(raw []byte, attributes map[string]string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventType == "" {
		env.EventType = enums.EventType(attributes[AttributeEventType])
	}
	if err := validate.Struct(env); err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.EventID == uuid.Nil {
		return Envelope{}, fmt.Errorf("invalid envelope: event id is required")
	}
	if !env.EventType.IsValid() {
		return Envelope{}, fmt.Errorf("invalid envelope: unknown event type %q", env.EventType)
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload into out and validates its tags.
func DecodeData(env Envelope, out any) error {
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid %s payload: %w", env.EventType, err)
	}
	return nil
}
