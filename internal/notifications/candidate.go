package notifications

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
)

// Candidate is a detected inactivity episode that has not been stored yet.
type Candidate struct {
	UserID       uuid.UUID
	ChatRoomID   *uuid.UUID
	Reason       enums.CandidateReason
	IdleSince    time.Time
	IdleDuration time.Duration
}

// DedupKey identifies the idle window the candidate belongs to. Two scans of
// the same episode produce the same key; new activity starts a new window.
func (c Candidate) DedupKey() string {
	room := "global"
	if c.ChatRoomID != nil {
		room = c.ChatRoomID.String()
	}
	return fmt.Sprintf("%s:%s:%s:%d", c.UserID, room, c.Reason, c.IdleSince.UTC().Unix())
}

// Content is the rendered title and body of a notification.
type Content struct {
	Title string
	Body  string
}

// IsEmpty reports whether either part of the content is blank.
func (c Content) IsEmpty() bool {
	return c.Title == "" || c.Body == ""
}
