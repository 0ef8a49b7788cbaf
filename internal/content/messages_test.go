package content

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/puppytalk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/puppytalk-backend/pkg/db/models"
	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/puppytalk-backend/pkg/errors"
)

func TestAppendPetMessageJoinsHistory(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writer := NewMessageWriter(conn, func() time.Time { return at })

	userID := uuid.New()
	pet := models.Pet{ID: uuid.New(), UserID: userID, Name: "Biscuit", CreatedAt: at.Add(-time.Hour)}
	require.NoError(t, conn.Create(&pet).Error)
	room := models.ChatRoom{ID: uuid.New(), UserID: userID, PetID: pet.ID, CreatedAt: at.Add(-time.Hour)}
	require.NoError(t, conn.Create(&room).Error)

	require.NoError(t, writer.AppendPetMessage(ctx, room.ID, "I miss you! Come play 🐶"))

	loaded, err := NewLoader(conn, 5).Load(ctx, userID, &room.ID)
	require.NoError(t, err)
	require.Len(t, loaded.History, 1)
	require.Equal(t, enums.MessageSenderPet, loaded.History[0].Sender)
	require.Equal(t, "I miss you! Come play 🐶", loaded.History[0].Content)
	require.True(t, loaded.History[0].CreatedAt.Equal(at))
}

func TestAppendPetMessageValidates(t *testing.T) {
	writer := NewMessageWriter(dbtest.Open(t), nil)
	ctx := context.Background()

	err := writer.AppendPetMessage(ctx, uuid.Nil, "hello")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	err = writer.AppendPetMessage(ctx, uuid.New(), "   ")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
