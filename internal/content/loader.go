package content

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/puppytalk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/puppytalk-backend/pkg/errors"
)

// PetContext is what the generator knows about the pet being missed.
type PetContext struct {
	Pet     *models.Pet
	Persona *models.Persona
	// History holds the most recent messages, oldest first.
	History []models.ChatMessage
}

// Loader reads the pet, persona and recent chat history behind a candidate.
type Loader struct {
	db          *gorm.DB
	historySize int
}

// NewLoader builds a Loader returning at most historySize messages.
func NewLoader(conn *gorm.DB, historySize int) *Loader {
	if historySize <= 0 {
		historySize = 5
	}
	return &Loader{db: conn, historySize: historySize}
}

// Load resolves the pet for chatRoomID, or the user's first pet when the
// room is unknown. A user without pets yields an empty context.
func (l *Loader) Load(ctx context.Context, userID uuid.UUID, chatRoomID *uuid.UUID) (PetContext, error) {
	var out PetContext
	conn := l.db.WithContext(ctx)

	var petID *uuid.UUID
	if chatRoomID != nil {
		var rooms []models.ChatRoom
		if err := conn.Where("id = ? AND user_id = ?", *chatRoomID, userID).Limit(1).Find(&rooms).Error; err != nil {
			return out, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load chat room")
		}
		if len(rooms) > 0 {
			petID = &rooms[0].PetID
		}
	}

	var pets []models.Pet
	query := conn.Where("user_id = ?", userID)
	if petID != nil {
		query = query.Where("id = ?", *petID)
	}
	if err := query.Order("created_at ASC").Order("id ASC").Limit(1).Find(&pets).Error; err != nil {
		return out, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load pet")
	}
	if len(pets) == 0 {
		return out, nil
	}
	out.Pet = &pets[0]

	if out.Pet.PersonaID != nil {
		var personas []models.Persona
		if err := conn.Where("id = ?", *out.Pet.PersonaID).Limit(1).Find(&personas).Error; err != nil {
			return out, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load persona")
		}
		if len(personas) > 0 {
			out.Persona = &personas[0]
		}
	}

	if chatRoomID != nil {
		var recent []models.ChatMessage
		err := conn.Where("chat_room_id = ?", *chatRoomID).
			Order("created_at DESC").
			Order("id DESC").
			Limit(l.historySize).
			Find(&recent).Error
		if err != nil {
			return out, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load chat history")
		}
		for i := len(recent) - 1; i >= 0; i-- {
			out.History = append(out.History, recent[i])
		}
	}
	return out, nil
}
