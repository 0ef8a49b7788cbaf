package notifications

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/puppytalk-backend/pkg/errors"
)

// transitions lists every legal status change. PENDING -> PENDING is a
// failed attempt that stays eligible for retry.
var transitions = map[enums.NotificationStatus][]enums.NotificationStatus{
	enums.NotificationStatusPending: {
		enums.NotificationStatusPending,
		enums.NotificationStatusSent,
		enums.NotificationStatusFailed,
	},
	enums.NotificationStatusSent: {
		enums.NotificationStatusReceived,
	},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to enums.NotificationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// sourcesFor returns the statuses that may move to target.
func sourcesFor(target enums.NotificationStatus) []enums.NotificationStatus {
	var out []enums.NotificationStatus
	for _, from := range enums.NotificationStatuses() {
		if CanTransition(from, target) {
			out = append(out, from)
		}
	}
	return out
}

func illegalTransition(id uuid.UUID, from, to enums.NotificationStatus) error {
	return pkgerrors.New(pkgerrors.CodeIllegalTransition, fmt.Sprintf("notification %s cannot move from %s to %s", id, from, to)).
		WithDetails(map[string]any{
			"notification_id": id.String(),
			"from":            from,
			"to":              to,
		})
}

// IsIllegalTransition reports whether err rejected a status change.
func IsIllegalTransition(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeIllegalTransition)
}

// IsClaimLost reports whether err is ErrClaimLost.
func IsClaimLost(err error) bool {
	return errors.Is(err, ErrClaimLost)
}
