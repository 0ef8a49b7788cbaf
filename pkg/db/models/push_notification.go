package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
)

// PushNotification is a single push message and its delivery lifecycle.
type PushNotification struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	ChatRoomID    *uuid.UUID               `gorm:"column:chat_room_id;type:uuid"`
	Type          enums.NotificationType   `gorm:"column:type;type:text;not null"`
	Title         string                   `gorm:"column:title;type:text;not null"`
	Body          string                   `gorm:"column:body;type:text;not null"`
	Payload       json.RawMessage          `gorm:"column:payload;type:jsonb"`
	Status        enums.NotificationStatus `gorm:"column:status;type:text;not null;index:idx_push_notifications_status_created,priority:1"`
	DedupKey      *string                  `gorm:"column:dedup_key;type:text;uniqueIndex:ux_push_notifications_dedup_active,where:status <> 'FAILED'"`
	AttemptCount  int                      `gorm:"column:attempt_count;not null;default:0"`
	FailureReason *string                  `gorm:"column:failure_reason;type:text"`
	NextAttemptAt time.Time                `gorm:"column:next_attempt_at;not null"`
	ClaimToken    *uuid.UUID               `gorm:"column:claim_token;type:uuid"`
	ClaimedAt     *time.Time               `gorm:"column:claimed_at"`
	CreatedAt     time.Time                `gorm:"column:created_at;not null;index:idx_push_notifications_status_created,priority:2"`
	SentAt        *time.Time               `gorm:"column:sent_at"`
	ReceivedAt    *time.Time               `gorm:"column:received_at"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;not null"`
}

func (PushNotification) TableName() string { return "push_notifications" }
