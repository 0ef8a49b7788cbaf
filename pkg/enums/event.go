package enums

import "fmt"

// EventType names the inbound Pub/Sub events the worker consumes.
type EventType string

const (
	EventChatMessageSent       EventType = "chat.message_sent"
	EventChatRoomOpened        EventType = "chat.room_opened"
	EventNotificationReceived  EventType = "notification.received"
	EventNotificationRequested EventType = "notification.requested"
)

var validEventTypes = []EventType{
	EventChatMessageSent,
	EventChatRoomOpened,
	EventNotificationReceived,
	EventNotificationRequested,
}

func (e EventType) String() string {
	return string(e)
}

func (e EventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// IsActivity reports whether the event marks user engagement.
func (e EventType) IsActivity() bool {
	return e == EventChatMessageSent || e == EventChatRoomOpened
}

func ParseEventType(value string) (EventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
