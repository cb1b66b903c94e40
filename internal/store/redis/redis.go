// Package redis implements [store.Store] on Redis via go-redis.
//
// Every record is stored as a JSON string value. Turn ordering within a
// session is kept in a per-session list of turn ids, so LoadSession replays
// the list to rebuild the ordered turn slice.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qamqor-ai/qamqor/internal/conversation"
	"github.com/qamqor-ai/qamqor/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is the Redis-backed conversation store. All methods are safe for
// concurrent use.
type Store struct {
	client *redis.Client
}

// New connects to the Redis server at addr and verifies the connection with a
// ping.
func New(ctx context.Context, addr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis store: ping: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping implements [store.Store].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis store: ping: %w", err)
	}
	return nil
}

// timeLayout is RFC 3339 with nanoseconds, matching what json.Marshal would
// produce for a time.Time value.
const timeLayout = time.RFC3339Nano

func sessionKey(id string) string  { return "session:" + id }
func turnKey(id string) string     { return "turn:" + id }
func turnListKey(id string) string { return "session:" + id + ":turns" }
func userKey(id string) string     { return "user:" + id }

// sessionRecord is the persisted shape of a session. Turns are stored under
// their own keys and referenced by the turn list, never inline.
type sessionRecord struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	StartedAt       string  `json:"started_at"`
	EndedAt         *string `json:"ended_at,omitempty"`
	STTProviderUsed string  `json:"stt_provider_used"`
	TTSProviderUsed string  `json:"tts_provider_used"`
	DeviceInfo      string  `json:"device_info"`
}

func (r sessionRecord) toSession() (*conversation.Session, error) {
	startedAt, err := time.Parse(timeLayout, r.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("redis store: parse started_at: %w", err)
	}
	sess := &conversation.Session{
		ID:              r.ID,
		UserID:          r.UserID,
		StartedAt:       startedAt,
		STTProviderUsed: r.STTProviderUsed,
		TTSProviderUsed: r.TTSProviderUsed,
		DeviceInfo:      r.DeviceInfo,
	}
	if r.EndedAt != nil {
		endedAt, err := time.Parse(timeLayout, *r.EndedAt)
		if err != nil {
			return nil, fmt.Errorf("redis store: parse ended_at: %w", err)
		}
		sess.EndedAt = &endedAt
	}
	return sess, nil
}

// SaveSession implements [store.Store]. The session row, every turn, and the
// turn-id list are written in one pipeline.
func (s *Store) SaveSession(ctx context.Context, sess *conversation.Session) error {
	rec := sessionRecord{
		ID:              sess.ID,
		UserID:          sess.UserID,
		StartedAt:       sess.StartedAt.Format(timeLayout),
		STTProviderUsed: sess.STTProviderUsed,
		TTSProviderUsed: sess.TTSProviderUsed,
		DeviceInfo:      sess.DeviceInfo,
	}
	if sess.EndedAt != nil {
		ended := sess.EndedAt.Format(timeLayout)
		rec.EndedAt = &ended
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis store: marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(sess.ID), payload, 0)
	pipe.Del(ctx, turnListKey(sess.ID))
	for _, t := range sess.Turns {
		turnPayload, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("redis store: marshal turn: %w", err)
		}
		pipe.Set(ctx, turnKey(t.ID), turnPayload, 0)
		pipe.RPush(ctx, turnListKey(sess.ID), t.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store: save session: %w", err)
	}
	return nil
}

// LoadSession implements [store.Store]. A missing id wraps
// [conversation.ErrNotFound].
func (s *Store) LoadSession(ctx context.Context, id string) (*conversation.Session, error) {
	payload, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", id, conversation.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: load session: %w", err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("redis store: unmarshal session: %w", err)
	}
	sess, err := rec.toSession()
	if err != nil {
		return nil, err
	}

	ids, err := s.client.LRange(ctx, turnListKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis store: load turn list: %w", err)
	}
	for _, turnID := range ids {
		t, err := s.LoadTurn(ctx, turnID)
		if err != nil {
			return nil, err
		}
		sess.Turns = append(sess.Turns, t)
	}
	return sess, nil
}

// SaveTurn implements [store.Store]. The turn must already be listed by a
// SaveSession call for LoadSession to see it; SaveTurn alone refreshes the
// turn body only.
func (s *Store) SaveTurn(ctx context.Context, t *conversation.Turn) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("redis store: marshal turn: %w", err)
	}
	if err := s.client.Set(ctx, turnKey(t.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("redis store: save turn: %w", err)
	}
	return nil
}

// LoadTurn implements [store.Store]. A missing id wraps
// [conversation.ErrNotFound].
func (s *Store) LoadTurn(ctx context.Context, id string) (*conversation.Turn, error) {
	payload, err := s.client.Get(ctx, turnKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("turn %s: %w", id, conversation.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: load turn: %w", err)
	}
	var t conversation.Turn
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, fmt.Errorf("redis store: unmarshal turn: %w", err)
	}
	return &t, nil
}

// EnsureUser implements [store.Store]. Existing records are left untouched.
func (s *Store) EnsureUser(ctx context.Context, u *conversation.User) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("redis store: marshal user: %w", err)
	}
	if err := s.client.SetNX(ctx, userKey(u.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("redis store: ensure user: %w", err)
	}
	return nil
}

// LoadUser implements [store.Store]. A missing id wraps
// [conversation.ErrNotFound].
func (s *Store) LoadUser(ctx context.Context, id string) (*conversation.User, error) {
	payload, err := s.client.Get(ctx, userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("user %s: %w", id, conversation.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: load user: %w", err)
	}
	var u conversation.User
	if err := json.Unmarshal(payload, &u); err != nil {
		return nil, fmt.Errorf("redis store: unmarshal user: %w", err)
	}
	return &u, nil
}
