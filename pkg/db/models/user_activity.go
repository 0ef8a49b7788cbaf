package models

import (
	"time"

	"github.com/google/uuid"
)

// GlobalRoomID marks the per-user activity row that spans all chat rooms.
var GlobalRoomID = uuid.Nil

// UserActivity stores the most recent activity timestamp for a (user, room)
// pair. The row with ChatRoomID == GlobalRoomID tracks the user overall.
type UserActivity struct {
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	ChatRoomID     uuid.UUID `gorm:"column:chat_room_id;type:uuid;primaryKey"`
	LastActivityAt time.Time `gorm:"column:last_activity_at;not null;index"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (UserActivity) TableName() string { return "user_activities" }

// IsGlobal reports whether the row tracks activity across every room.
func (a UserActivity) IsGlobal() bool {
	return a.ChatRoomID == GlobalRoomID
}

// RoomID returns nil for the global row.
func (a UserActivity) RoomID() *uuid.UUID {
	if a.IsGlobal() {
		return nil
	}
	id := a.ChatRoomID
	return &id
}
