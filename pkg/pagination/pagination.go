package pagination

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 100
	// MaxLimit caps how many rows any keyset query can request.
	MaxLimit = 1000
)

// Cursor is the last (timestamp, id) pair of the previous page.
type Cursor struct {
	At time.Time
	ID uuid.UUID
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Apply orders query by (timeColumn, idColumn) and skips everything up to
// and including the cursor. A nil cursor starts at the first row.
func Apply(query *gorm.DB, cursor *Cursor, timeColumn, idColumn string) *gorm.DB {
	if cursor != nil {
		query = query.Where(
			fmt.Sprintf("%s > ? OR (%s = ? AND %s > ?)", timeColumn, timeColumn, idColumn),
			cursor.At.UTC(), cursor.At.UTC(), cursor.ID,
		)
	}
	return query.Order(timeColumn + " ASC").Order(idColumn + " ASC")
}
