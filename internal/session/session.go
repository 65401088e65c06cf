// Package session keeps the state of multi-step edits between requests.
// A session remembers which task is being edited and which field was
// picked; it never holds task data, which is always re-read from the store.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an idle session survives.
const DefaultTTL = 30 * time.Minute

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Session is one edit in progress.
type Session struct {
	ID        string    `json:"id"`
	TaskName  string    `json:"taskName,omitempty"`
	Field     string    `json:"field,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists sessions by id. Save refreshes the expiry.
type Store interface {
	Load(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
}

// NewID returns a fresh opaque session id.
func NewID() string {
	return uuid.NewString()
}
