// Package conversation holds the session/turn data model and state machine of
// the voice assistant core.
//
// A Session is one continuous interaction owning an ordered, gapless sequence
// of Turns. Each Turn advances through a fixed set of states as the pipeline
// runs its stages; every transition method checks its precondition and fails
// with [ErrInvalidState] rather than corrupting state, which makes the state
// machine the concurrency safety net — no external locking is required even
// if two requests race on the same turn.
package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/qamqor-ai/qamqor/pkg/types"
)

// DemoUserID is the fixed user identity applied when the caller supplies no
// user. It keeps the system demoable without an account.
const DemoUserID = "00000000-0000-0000-0000-000000000001"

// User is the minimal identity record the pipeline needs: who is speaking and
// in which language to answer.
type User struct {
	ID       string
	Name     string
	Language types.Language

	// STTProvider and TTSProvider are the user's preferred provider names,
	// recorded on sessions for analytics. They do not reorder fallback chains.
	STTProvider string
	TTSProvider string
}

// DemoUser returns the built-in demo identity.
func DemoUser() *User {
	return &User{
		ID:          DemoUserID,
		Name:        "Demo",
		Language:    types.LanguageRussian,
		STTProvider: "google",
		TTSProvider: "google",
	}
}

// AudioRef is an opaque reference to stored audio plus a playback duration
// estimate in seconds.
type AudioRef struct {
	Ref             string
	DurationSeconds float64
}

// Session is one continuous interaction: an ordered list of turns belonging
// to a single user. Turns never outlive their session.
type Session struct {
	ID        string
	UserID    string
	StartedAt time.Time

	// EndedAt is nil while the session is open. It is set once by End and
	// never cleared.
	EndedAt *time.Time

	// STTProviderUsed / TTSProviderUsed record which provider preference was
	// active when the session started.
	STTProviderUsed string
	TTSProviderUsed string

	// DeviceInfo is the optional device descriptor supplied at creation,
	// stored verbatim.
	DeviceInfo string

	// Turns is the ordered turn list; Turns[i].TurnNumber == i+1 always.
	Turns []*Turn
}

// NewSession creates an open session for user at now.
func NewSession(user *User, deviceInfo string, now time.Time) *Session {
	return &Session{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		StartedAt:       now,
		STTProviderUsed: user.STTProvider,
		TTSProviderUsed: user.TTSProvider,
		DeviceInfo:      deviceInfo,
	}
}

// Ended reports whether the session has been closed.
func (s *Session) Ended() bool {
	return s.EndedAt != nil
}

// CreateTurn allocates the next turn number and appends a new turn in state
// [StateCreated]. It fails with [ErrInvalidState] if the session has ended.
func (s *Session) CreateTurn(now time.Time) (*Turn, error) {
	if s.Ended() {
		return nil, fmt.Errorf("session %s has ended: %w", s.ID, ErrInvalidState)
	}
	t := &Turn{
		ID:             uuid.NewString(),
		ConversationID: s.ID,
		TurnNumber:     len(s.Turns) + 1,
		Timestamp:      now,
		State:          StateCreated,
	}
	s.Turns = append(s.Turns, t)
	return t, nil
}

// End closes the session at now. Ending an already-ended session is a no-op:
// EndedAt is monotonically set once and never changed.
func (s *Session) End(now time.Time) {
	if s.EndedAt != nil {
		return
	}
	s.EndedAt = &now
}

// FindTurn returns the turn with the given id, or nil when the session holds
// no such turn.
func (s *Session) FindTurn(turnID string) *Turn {
	for _, t := range s.Turns {
		if t.ID == turnID {
			return t
		}
	}
	return nil
}
