// Package postgres implements [store.Store] on PostgreSQL via pgx.
//
// Sessions, turns, and users each live in their own table; word-level STT
// timings are kept as a JSONB column on turns rather than a child table since
// they are only ever read back whole.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qamqor-ai/qamqor/internal/conversation"
	"github.com/qamqor-ai/qamqor/internal/store"
	"github.com/qamqor-ai/qamqor/pkg/types"
)

var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed conversation store. It holds a single
// [pgxpool.Pool]; all methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New establishes a connection pool to the database at dsn, verifies it with a
// ping, and runs [Migrate] to ensure all required tables exist.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping implements [store.Store].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// SaveSession implements [store.Store]. It upserts the session row and every
// turn the session currently holds, in one transaction.
func (s *Store) SaveSession(ctx context.Context, sess *conversation.Session) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		INSERT INTO conversations
		    (id, user_id, started_at, ended_at, stt_provider_used, tts_provider_used, device_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
		    ended_at          = EXCLUDED.ended_at,
		    stt_provider_used = EXCLUDED.stt_provider_used,
		    tts_provider_used = EXCLUDED.tts_provider_used,
		    device_info       = EXCLUDED.device_info`

	_, err = tx.Exec(ctx, q,
		sess.ID,
		sess.UserID,
		sess.StartedAt,
		sess.EndedAt,
		sess.STTProviderUsed,
		sess.TTSProviderUsed,
		sess.DeviceInfo,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save session: %w", err)
	}

	for _, t := range sess.Turns {
		if err := upsertTurn(ctx, tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: commit: %w", err)
	}
	return nil
}

// LoadSession implements [store.Store]. Turns come back ordered by turn
// number. A missing id wraps [conversation.ErrNotFound].
func (s *Store) LoadSession(ctx context.Context, id string) (*conversation.Session, error) {
	const q = `
		SELECT id, user_id, started_at, ended_at, stt_provider_used, tts_provider_used, device_info
		FROM   conversations
		WHERE  id = $1`

	var (
		sess    conversation.Session
		endedAt *time.Time
	)
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&sess.ID,
		&sess.UserID,
		&sess.StartedAt,
		&endedAt,
		&sess.STTProviderUsed,
		&sess.TTSProviderUsed,
		&sess.DeviceInfo,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, conversation.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: load session: %w", err)
	}
	sess.EndedAt = endedAt

	const qt = turnColumns + `
		FROM   turns
		WHERE  conversation_id = $1
		ORDER  BY turn_number`

	rows, err := s.pool.Query(ctx, qt, id)
	if err != nil {
		return nil, fmt.Errorf("postgres store: load turns: %w", err)
	}
	turns, err := collectTurns(rows)
	if err != nil {
		return nil, err
	}
	sess.Turns = turns
	return &sess, nil
}

// SaveTurn implements [store.Store].
func (s *Store) SaveTurn(ctx context.Context, t *conversation.Turn) error {
	return upsertTurn(ctx, s.pool, t)
}

// LoadTurn implements [store.Store]. A missing id wraps
// [conversation.ErrNotFound].
func (s *Store) LoadTurn(ctx context.Context, id string) (*conversation.Turn, error) {
	const q = turnColumns + `
		FROM   turns
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("postgres store: load turn: %w", err)
	}
	turns, err := collectTurns(rows)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("turn %s: %w", id, conversation.ErrNotFound)
	}
	return turns[0], nil
}

// EnsureUser implements [store.Store]. Existing rows are left untouched so a
// user's stored preferences survive repeated ensures.
func (s *Store) EnsureUser(ctx context.Context, u *conversation.User) error {
	const q = `
		INSERT INTO users (id, name, language, stt_provider, tts_provider)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, q, u.ID, u.Name, string(u.Language), u.STTProvider, u.TTSProvider)
	if err != nil {
		return fmt.Errorf("postgres store: ensure user: %w", err)
	}
	return nil
}

// LoadUser implements [store.Store]. A missing id wraps
// [conversation.ErrNotFound].
func (s *Store) LoadUser(ctx context.Context, id string) (*conversation.User, error) {
	const q = `
		SELECT id, name, language, stt_provider, tts_provider
		FROM   users
		WHERE  id = $1`

	var (
		u    conversation.User
		lang string
	)
	err := s.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Name, &lang, &u.STTProvider, &u.TTSProvider)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, conversation.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: load user: %w", err)
	}
	u.Language = types.Language(lang)
	return &u, nil
}

// execer abstracts *pgxpool.Pool and pgx.Tx so upsertTurn can run both inside
// and outside a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const turnColumns = `
		SELECT id, conversation_id, turn_number, timestamp, state,
		       audio_input_ref, audio_input_duration,
		       raw_transcript, normalized_transcript, transcript_confidence, stt_latency_ms, stt_words,
		       user_confirmed, user_correction,
		       assistant_text, llm_latency_ms,
		       audio_output_ref, audio_output_duration, tts_latency_ms,
		       needs_review, low_confidence`

func upsertTurn(ctx context.Context, db execer, t *conversation.Turn) error {
	const q = `
		INSERT INTO turns
		    (id, conversation_id, turn_number, timestamp, state,
		     audio_input_ref, audio_input_duration,
		     raw_transcript, normalized_transcript, transcript_confidence, stt_latency_ms, stt_words,
		     user_confirmed, user_correction,
		     assistant_text, llm_latency_ms,
		     audio_output_ref, audio_output_duration, tts_latency_ms,
		     needs_review, low_confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO UPDATE SET
		    state                 = EXCLUDED.state,
		    audio_input_ref       = EXCLUDED.audio_input_ref,
		    audio_input_duration  = EXCLUDED.audio_input_duration,
		    raw_transcript        = EXCLUDED.raw_transcript,
		    normalized_transcript = EXCLUDED.normalized_transcript,
		    transcript_confidence = EXCLUDED.transcript_confidence,
		    stt_latency_ms        = EXCLUDED.stt_latency_ms,
		    stt_words             = EXCLUDED.stt_words,
		    user_confirmed        = EXCLUDED.user_confirmed,
		    user_correction       = EXCLUDED.user_correction,
		    assistant_text        = EXCLUDED.assistant_text,
		    llm_latency_ms        = EXCLUDED.llm_latency_ms,
		    audio_output_ref      = EXCLUDED.audio_output_ref,
		    audio_output_duration = EXCLUDED.audio_output_duration,
		    tts_latency_ms        = EXCLUDED.tts_latency_ms,
		    needs_review          = EXCLUDED.needs_review,
		    low_confidence        = EXCLUDED.low_confidence`

	words, err := json.Marshal(wordsOrEmpty(t.Words))
	if err != nil {
		return fmt.Errorf("postgres store: marshal words: %w", err)
	}

	var (
		inRef, outRef           string
		inDuration, outDuration float64
	)
	if t.AudioInput != nil {
		inRef, inDuration = t.AudioInput.Ref, t.AudioInput.DurationSeconds
	}
	if t.AudioOutput != nil {
		outRef, outDuration = t.AudioOutput.Ref, t.AudioOutput.DurationSeconds
	}

	_, err = db.Exec(ctx, q,
		t.ID,
		t.ConversationID,
		t.TurnNumber,
		t.Timestamp,
		int(t.State),
		inRef,
		inDuration,
		t.RawTranscript,
		t.NormalizedTranscript,
		t.TranscriptConfidence,
		t.STTLatencyMS,
		words,
		t.UserConfirmed,
		t.UserCorrection,
		t.AssistantText,
		t.LLMLatencyMS,
		outRef,
		outDuration,
		t.TTSLatencyMS,
		t.NeedsReview,
		t.LowConfidence,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save turn: %w", err)
	}
	return nil
}

func wordsOrEmpty(words []types.Word) []types.Word {
	if words == nil {
		return []types.Word{}
	}
	return words
}

// collectTurns scans pgx rows into turn values.
func collectTurns(rows pgx.Rows) ([]*conversation.Turn, error) {
	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*conversation.Turn, error) {
		var (
			t                       conversation.Turn
			state                   int
			inRef, outRef           string
			inDuration, outDuration float64
			wordsJSON               []byte
		)
		if err := row.Scan(
			&t.ID,
			&t.ConversationID,
			&t.TurnNumber,
			&t.Timestamp,
			&state,
			&inRef,
			&inDuration,
			&t.RawTranscript,
			&t.NormalizedTranscript,
			&t.TranscriptConfidence,
			&t.STTLatencyMS,
			&wordsJSON,
			&t.UserConfirmed,
			&t.UserCorrection,
			&t.AssistantText,
			&t.LLMLatencyMS,
			&outRef,
			&outDuration,
			&t.TTSLatencyMS,
			&t.NeedsReview,
			&t.LowConfidence,
		); err != nil {
			return nil, err
		}
		t.State = conversation.TurnState(state)
		if inRef != "" {
			t.AudioInput = &conversation.AudioRef{Ref: inRef, DurationSeconds: inDuration}
		}
		if outRef != "" {
			t.AudioOutput = &conversation.AudioRef{Ref: outRef, DurationSeconds: outDuration}
		}
		if len(wordsJSON) > 0 {
			if err := json.Unmarshal(wordsJSON, &t.Words); err != nil {
				return nil, err
			}
		}
		return &t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan turns: %w", err)
	}
	return turns, nil
}
