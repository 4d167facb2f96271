// Package databasesql provides a history.Store backed by database/sql.
//
// Use this driver when the application already manages a *sql.DB (for
// example with lib/pq); otherwise prefer the pgxv5 driver.
package databasesql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jaidee-care/jaidee/history"
)

// Store implements history.Store using database/sql.
type Store struct {
	db *sql.DB
}

// New creates a database/sql-backed history store. The caller owns the DB.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the history table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, history.Schema); err != nil {
		return fmt.Errorf("migrate history schema: %w", err)
	}
	return nil
}

// Append inserts a record, assigning its id and timestamp.
func (s *Store) Append(ctx context.Context, rec *history.Record) error {
	if rec.UserID == "" {
		return fmt.Errorf("append history: user_id is required")
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO jaidee_history (user_id, user_message, bot_response, token_count, important)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, ts`,
		rec.UserID, rec.UserMessage, rec.BotResponse, rec.TokenCount, rec.Important,
	)
	if err := row.Scan(&rec.ID, &rec.Timestamp); err != nil {
		return fmt.Errorf("append history for %s: %w", rec.UserID, err)
	}
	return nil
}

// QueryRecent returns up to maxPairs most recent records, id ascending.
func (s *Store) QueryRecent(ctx context.Context, userID string, maxPairs int) ([]history.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, ts, user_message, bot_response, token_count, important
		FROM (
			SELECT id, user_id, ts, user_message, bot_response, token_count, important
			FROM jaidee_history
			WHERE user_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC`,
		userID, maxPairs,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent history for %s: %w", userID, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// QueryBefore returns up to maxPairs records older than beforeID, id ascending.
func (s *Store) QueryBefore(ctx context.Context, userID string, beforeID int64, maxPairs int) ([]history.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, ts, user_message, bot_response, token_count, important
		FROM (
			SELECT id, user_id, ts, user_message, bot_response, token_count, important
			FROM jaidee_history
			WHERE user_id = $1 AND id < $2
			ORDER BY id DESC
			LIMIT $3
		) older
		ORDER BY id ASC`,
		userID, beforeID, maxPairs,
	)
	if err != nil {
		return nil, fmt.Errorf("query history before %d for %s: %w", beforeID, userID, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]history.Record, error) {
	var records []history.Record
	for rows.Next() {
		var rec history.Record
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Timestamp,
			&rec.UserMessage, &rec.BotResponse, &rec.TokenCount, &rec.Important); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history records: %w", err)
	}
	return records, nil
}
