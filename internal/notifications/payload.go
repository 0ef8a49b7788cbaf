package notifications

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/puppytalk-backend/pkg/db/models"
	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Payload is the type-specific part of a notification. Every variant shares
// the same status machine; only the payload differs.
type Payload interface {
	Type() enums.NotificationType
	// Data is the flattened form sent alongside the push message.
	Data() map[string]string
}

type InactivityPayload struct {
	ChatRoomID  *uuid.UUID            `json:"chatRoomId,omitempty"`
	Reason      enums.CandidateReason `json:"reason" validate:"required"`
	IdleSince   time.Time             `json:"idleSince" validate:"required"`
	IdleSeconds int64                 `json:"idleSeconds" validate:"gte=0"`
}

func (InactivityPayload) Type() enums.NotificationType {
	return enums.NotificationTypeInactivityMessage
}

func (p InactivityPayload) Data() map[string]string {
	data := map[string]string{
		"reason":       string(p.Reason),
		"idle_seconds": strconv.FormatInt(p.IdleSeconds, 10),
	}
	if p.ChatRoomID != nil {
		data["chat_room_id"] = p.ChatRoomID.String()
	}
	return data
}

type NewMessagePayload struct {
	ChatRoomID uuid.UUID `json:"chatRoomId" validate:"required"`
	MessageID  uuid.UUID `json:"messageId" validate:"required"`
	PetName    string    `json:"petName,omitempty"`
}

func (NewMessagePayload) Type() enums.NotificationType {
	return enums.NotificationTypeNewMessage
}

func (p NewMessagePayload) Data() map[string]string {
	return map[string]string{
		"chat_room_id": p.ChatRoomID.String(),
		"message_id":   p.MessageID.String(),
	}
}

type SystemAnnouncementPayload struct {
	AnnouncementID string `json:"announcementId" validate:"required"`
	URL            string `json:"url,omitempty" validate:"omitempty,url"`
}

func (SystemAnnouncementPayload) Type() enums.NotificationType {
	return enums.NotificationTypeSystemAnnouncement
}

func (p SystemAnnouncementPayload) Data() map[string]string {
	data := map[string]string{"announcement_id": p.AnnouncementID}
	if p.URL != "" {
		data["url"] = p.URL
	}
	return data
}

type PetStatusChangePayload struct {
	PetID  uuid.UUID `json:"petId" validate:"required"`
	Status string    `json:"status" validate:"required"`
}

func (PetStatusChangePayload) Type() enums.NotificationType {
	return enums.NotificationTypePetStatusChange
}

func (p PetStatusChangePayload) Data() map[string]string {
	return map[string]string{
		"pet_id": p.PetID.String(),
		"status": p.Status,
	}
}

// ParsePayload decodes raw JSON into the variant matching t.
func ParsePayload(t enums.NotificationType, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch t {
	case enums.NotificationTypeInactivityMessage:
		var v InactivityPayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case enums.NotificationTypeNewMessage:
		var v NewMessagePayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case enums.NotificationTypeSystemAnnouncement:
		var v SystemAnnouncementPayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case enums.NotificationTypePetStatusChange:
		var v PetStatusChangePayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	default:
		return nil, fmt.Errorf("unsupported notification type %q", t)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", t, err)
	}
	return p, nil
}

// PushData builds the data map delivered with the push message.
func PushData(n *models.PushNotification) map[string]string {
	data := map[string]string{}
	if len(n.Payload) > 0 {
		if p, err := ParsePayload(n.Type, n.Payload); err == nil {
			data = p.Data()
		}
	}
	data["notification_id"] = n.ID.String()
	data["type"] = string(n.Type)
	return data
}
