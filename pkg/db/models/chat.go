package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
)

// ChatRoom pairs a user with one of their pets.
type ChatRoom struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	PetID     uuid.UUID `gorm:"column:pet_id;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ChatRoom) TableName() string { return "chat_rooms" }

type ChatMessage struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ChatRoomID uuid.UUID           `gorm:"column:chat_room_id;type:uuid;not null;index:idx_chat_messages_room_created,priority:1"`
	Sender     enums.MessageSender `gorm:"column:sender;type:text;not null"`
	Content    string              `gorm:"column:content;type:text;not null"`
	CreatedAt  time.Time           `gorm:"column:created_at;not null;index:idx_chat_messages_room_created,priority:2"`
}

func (ChatMessage) TableName() string { return "chat_messages" }
