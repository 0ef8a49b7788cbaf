package models

import (
	"time"

	"github.com/google/uuid"
)

// Pet is the companion a user chats with.
type Pet struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	PersonaID *uuid.UUID `gorm:"column:persona_id;type:uuid"`
	Name      string     `gorm:"column:name;type:text;not null"`
	Breed     string     `gorm:"column:breed;type:text"`
	Age       int        `gorm:"column:age"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (Pet) TableName() string { return "pets" }

// Persona shapes how a pet talks.
type Persona struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name           string    `gorm:"column:name;type:text;not null"`
	Description    string    `gorm:"column:description;type:text"`
	Traits         string    `gorm:"column:traits;type:text"`
	PromptTemplate string    `gorm:"column:prompt_template;type:text"`
}

func (Persona) TableName() string { return "personas" }
