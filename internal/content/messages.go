package content

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/puppytalk-backend/pkg/db/models"
	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/puppytalk-backend/pkg/errors"
)

// MessageWriter appends pet-authored messages to chat rooms.
type MessageWriter struct {
	db  *gorm.DB
	now func() time.Time
}

func NewMessageWriter(conn *gorm.DB, now func() time.Time) *MessageWriter {
	if now == nil {
		now = time.Now
	}
	return &MessageWriter{db: conn, now: now}
}

// AppendPetMessage stores content as a PET message in chatRoomID.
func (w *MessageWriter) AppendPetMessage(ctx context.Context, chatRoomID uuid.UUID, content string) error {
	if chatRoomID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "chat room id is required")
	}
	if strings.TrimSpace(content) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message content is required")
	}
	msg := models.ChatMessage{
		ID:         uuid.New(),
		ChatRoomID: chatRoomID,
		Sender:     enums.MessageSenderPet,
		Content:    content,
		CreatedAt:  w.now().UTC(),
	}
	if err := w.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "append pet message")
	}
	return nil
}
