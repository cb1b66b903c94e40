// Package memory provides an in-process Store used in tests and in demo mode
// when no database is configured.
//
// Records are held by pointer, so a session loaded twice shares one turn list
// — the state machine's transition preconditions then act as the concurrency
// guard exactly as they do against a shared database row.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/qamqor-ai/qamqor/internal/conversation"
	"github.com/qamqor-ai/qamqor/internal/store"
)

// Store is an in-memory store.Store implementation.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*conversation.Session
	turns    map[string]*conversation.Turn
	users    map[string]*conversation.User
}

var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		sessions: make(map[string]*conversation.Session),
		turns:    make(map[string]*conversation.Turn),
		users:    make(map[string]*conversation.User),
	}
}

// SaveSession implements store.Store.
func (s *Store) SaveSession(_ context.Context, sess *conversation.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

// LoadSession implements store.Store.
func (s *Store) LoadSession(_ context.Context, id string) (*conversation.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, conversation.ErrNotFound)
	}
	return sess, nil
}

// SaveTurn implements store.Store.
func (s *Store) SaveTurn(_ context.Context, t *conversation.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[t.ID] = t
	return nil
}

// LoadTurn implements store.Store.
func (s *Store) LoadTurn(_ context.Context, id string) (*conversation.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.turns[id]
	if !ok {
		return nil, fmt.Errorf("turn %s: %w", id, conversation.ErrNotFound)
	}
	return t, nil
}

// EnsureUser implements store.Store.
func (s *Store) EnsureUser(_ context.Context, u *conversation.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		s.users[u.ID] = u
	}
	return nil
}

// LoadUser implements store.Store.
func (s *Store) LoadUser(_ context.Context, id string) (*conversation.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, conversation.ErrNotFound)
	}
	return u, nil
}

// Ping implements store.Store. The in-memory store is always reachable.
func (s *Store) Ping(context.Context) error {
	return nil
}
