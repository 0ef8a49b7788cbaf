package tokens

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/puppytalk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/puppytalk-backend/pkg/errors"
)

// Directory looks up the push tokens registered to a user.
type Directory struct {
	db *gorm.DB
}

func NewDirectory(conn *gorm.DB) *Directory {
	return &Directory{db: conn}
}

// ActiveTokens returns the user's active device tokens, oldest registration
// first. An empty slice means the user cannot be reached.
func (d *Directory) ActiveTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var tokens []string
	err := d.db.WithContext(ctx).
		Model(&models.DeviceToken{}).
		Where("user_id = ? AND active = ?", userID, true).
		Order("created_at ASC").
		Pluck("token", &tokens).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load device tokens")
	}
	return tokens, nil
}
