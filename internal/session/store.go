package session

import "context"

// Store persists at most one session. Implementations must write and remove
// the token and the user together.
type Store interface {
	// Load returns the persisted session, or nil when none is stored
	Load(ctx context.Context) (*Session, error)

	// Save replaces the persisted session
	Save(ctx context.Context, s *Session) error

	// Delete removes the persisted session
	Delete(ctx context.Context) error

	// CheckHealth verifies the storage backend is healthy
	CheckHealth(ctx context.Context) error
}
