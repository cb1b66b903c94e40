package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// DDL — users, conversations, turns
// ─────────────────────────────────────────────────────────────────────────────

const ddlUsers = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT         PRIMARY KEY,
    name          TEXT         NOT NULL DEFAULT '',
    language      TEXT         NOT NULL DEFAULT 'ru',
    stt_provider  TEXT         NOT NULL DEFAULT 'google',
    tts_provider  TEXT         NOT NULL DEFAULT 'google',
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlConversations = `
CREATE TABLE IF NOT EXISTS conversations (
    id                 TEXT         PRIMARY KEY,
    user_id            TEXT         NOT NULL REFERENCES users (id),
    started_at         TIMESTAMPTZ  NOT NULL DEFAULT now(),
    ended_at           TIMESTAMPTZ,
    stt_provider_used  TEXT         NOT NULL DEFAULT '',
    tts_provider_used  TEXT         NOT NULL DEFAULT '',
    device_info        TEXT         NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_conversations_user_id
    ON conversations (user_id);
`

const ddlTurns = `
CREATE TABLE IF NOT EXISTS turns (
    id                     TEXT             PRIMARY KEY,
    conversation_id        TEXT             NOT NULL REFERENCES conversations (id),
    turn_number            INTEGER          NOT NULL,
    timestamp              TIMESTAMPTZ      NOT NULL DEFAULT now(),
    state                  INTEGER          NOT NULL DEFAULT 0,
    audio_input_ref        TEXT             NOT NULL DEFAULT '',
    audio_input_duration   DOUBLE PRECISION NOT NULL DEFAULT 0,
    raw_transcript         TEXT             NOT NULL DEFAULT '',
    normalized_transcript  TEXT             NOT NULL DEFAULT '',
    transcript_confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
    stt_latency_ms         BIGINT           NOT NULL DEFAULT 0,
    stt_words              JSONB            NOT NULL DEFAULT '[]',
    user_confirmed         BOOLEAN,
    user_correction        TEXT             NOT NULL DEFAULT '',
    assistant_text         TEXT             NOT NULL DEFAULT '',
    llm_latency_ms         BIGINT           NOT NULL DEFAULT 0,
    audio_output_ref       TEXT             NOT NULL DEFAULT '',
    audio_output_duration  DOUBLE PRECISION NOT NULL DEFAULT 0,
    tts_latency_ms         BIGINT           NOT NULL DEFAULT 0,
    needs_review           BOOLEAN          NOT NULL DEFAULT FALSE,
    low_confidence         BOOLEAN          NOT NULL DEFAULT FALSE,
    UNIQUE (conversation_id, turn_number)
);

CREATE INDEX IF NOT EXISTS idx_turns_conversation_id
    ON turns (conversation_id);
`

// Migrate creates all tables and indexes idempotently.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlUsers, ddlConversations, ddlTurns} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres store: migrate: %w", err)
		}
	}
	return nil
}
