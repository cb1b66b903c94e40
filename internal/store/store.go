// Package store defines the persistence contract of the conversation core and
// its backends.
//
// The core needs only narrow load/save operations addressed by identifier;
// schema management and connection pooling are backend concerns. Loading an
// unknown identifier fails with an error wrapping [conversation.ErrNotFound].
//
// Implementations must be safe for concurrent use.
package store

import (
	"context"

	"github.com/qamqor-ai/qamqor/internal/conversation"
)

// Store is the durable home of sessions, their turns, and user records.
type Store interface {
	// SaveSession persists the session metadata. Turns are persisted
	// separately via SaveTurn.
	SaveSession(ctx context.Context, s *conversation.Session) error

	// LoadSession returns the session with its turns ordered by turn number.
	LoadSession(ctx context.Context, id string) (*conversation.Session, error)

	// SaveTurn inserts or updates one turn.
	SaveTurn(ctx context.Context, t *conversation.Turn) error

	// LoadTurn returns a single turn by id.
	LoadTurn(ctx context.Context, id string) (*conversation.Turn, error)

	// EnsureUser inserts the user record if absent; an existing record is
	// left untouched.
	EnsureUser(ctx context.Context, u *conversation.User) error

	// LoadUser returns a user record by id.
	LoadUser(ctx context.Context, id string) (*conversation.User, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
