package events

import (
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
)

type samplePayload struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
	Note   string    `json:"note" validate:"max=5"`
}

func TestDecodeUsesAttributeEventType(t *testing.T) {
	id := uuid.New()
	raw := []byte(`{"version":1,"eventId":"` + id.String() + `","data":{"userId":"` + uuid.NewString() + `"}}`)

	env, err := Decode(raw, map[string]string{AttributeEventType: string(enums.EventChatMessageSent)})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.EventID != id {
		t.Fatalf("unexpected event id %s", env.EventID)
	}
	if env.EventType != enums.EventChatMessageSent {
		t.Fatalf("unexpected event type %s", env.EventType)
	}

	var payload samplePayload
	if err := DecodeData(env, &payload); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestDecodeRejectsInvalidEnvelopes(t *testing.T) {
	cases := map[string]string{
		"malformed":    `{`,
		"missing id":   `{"eventType":"chat.message_sent","data":{}}`,
		"unknown type": `{"eventId":"` + uuid.NewString() + `","eventType":"nope","data":{}}`,
		"missing data": `{"eventId":"` + uuid.NewString() + `","eventType":"chat.message_sent"}`,
	}
	for name, raw := range cases {
		if _, err := Decode([]byte(raw), nil); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDecodeDataValidatesPayload(t *testing.T) {
	env := Envelope{EventType: enums.EventChatMessageSent, Data: []byte(`{"note":"too long for the limit"}`)}
	var payload samplePayload
	if err := DecodeData(env, &payload); err == nil {
		t.Fatalf("expected validation error")
	}
}
