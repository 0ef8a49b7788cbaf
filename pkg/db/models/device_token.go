package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
)

// DeviceToken is a registered push destination for a user.
type DeviceToken struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	Token     string               `gorm:"column:token;type:text;not null;uniqueIndex"`
	Platform  enums.DevicePlatform `gorm:"column:platform;type:text;not null"`
	Active    bool                 `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (DeviceToken) TableName() string { return "device_tokens" }
