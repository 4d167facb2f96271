// Package history defines the durable, append-only conversation archive.
//
// Every completed turn is appended as a Record. Records are never mutated
// after insert; id order is the canonical chronological order for a given
// user (timestamps are kept for display only).
//
// Implementations live in the driver sub-packages:
//   - github.com/jaidee-care/jaidee/history/pgxv5 (pgx/v5 pool)
//   - github.com/jaidee-care/jaidee/history/databasesql (database/sql)
package history

import (
	"context"
	"time"
)

// Record is one archived user/bot message pair.
type Record struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Timestamp   time.Time `json:"timestamp"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	TokenCount  int       `json:"token_count"`
	Important   bool      `json:"important"`
}

// Store is the durable archive of message pairs.
type Store interface {
	// Append inserts a record. The store assigns ID and, when zero,
	// Timestamp.
	Append(ctx context.Context, rec *Record) error

	// QueryRecent returns up to maxPairs of the user's most recent records,
	// ordered by id ascending.
	QueryRecent(ctx context.Context, userID string, maxPairs int) ([]Record, error)

	// QueryBefore returns up to maxPairs records with id strictly below
	// beforeID, ordered by id ascending. Used to summarize history older
	// than what a session restore consumed, without double-counting.
	QueryBefore(ctx context.Context, userID string, beforeID int64, maxPairs int) ([]Record, error)
}

// Schema is the table definition shared by both SQL drivers.
const Schema = `
CREATE TABLE IF NOT EXISTS jaidee_history (
	id           BIGSERIAL PRIMARY KEY,
	user_id      TEXT NOT NULL,
	ts           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	user_message TEXT NOT NULL,
	bot_response TEXT NOT NULL,
	token_count  INTEGER NOT NULL DEFAULT 0,
	important    BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_jaidee_history_user_id ON jaidee_history (user_id, id DESC);
`
