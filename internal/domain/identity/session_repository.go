package identity

import "context"

// SessionRepository persists sessions
type SessionRepository interface {
	// Save stores the session until its expiry
	Save(ctx context.Context, s *Session) error

	// FindByID returns shared.ErrNotFound for unknown or expired ids
	FindByID(ctx context.Context, id string) (*Session, error)

	// Delete removes the session; unknown ids are not an error
	Delete(ctx context.Context, id string) error
}
