package ports

import (
	"context"

	"github.com/aretw0/tourguide/pkg/domain"
)

// SessionStore defines the interface for persisting tutorial sessions.
// This is what lets a tutorial survive page reloads and navigations.
type SessionStore interface {
	// Save persists the session for a given tab ID.
	Save(ctx context.Context, tabID string, session *domain.Session) error

	// Load retrieves the session for a given tab ID.
	// Returns domain.ErrSessionNotFound if nothing is stored and
	// domain.ErrSessionCorrupt if the stored record misses expected fields.
	Load(ctx context.Context, tabID string) (*domain.Session, error)

	// Delete removes the session for a given tab ID. Deleting a missing session is not an error.
	Delete(ctx context.Context, tabID string) error

	// List returns the tab IDs with a stored session.
	List(ctx context.Context) ([]string, error)
}
