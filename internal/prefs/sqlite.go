package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"red_bot/internal/model"
	"red_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Store backed by a SQLite database. The mapping is
// stored as one JSON document per chat; the single-row upsert keeps
// conflicting writes for the same chat serialized.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns the stored mapping for a chat, nil when absent.
func (s *SQLite) Get(ctx context.Context, chatID int64) (model.CatSources, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM prefs WHERE chat_id = ?`, chatID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query prefs: %w", err)
	}

	var sources model.CatSources
	if err := json.Unmarshal([]byte(data), &sources); err != nil {
		return nil, fmt.Errorf("decode prefs: %w", err)
	}
	return sources, nil
}

// Set stores or replaces the mapping for a chat.
func (s *SQLite) Set(ctx context.Context, chatID int64, sources model.CatSources) error {
	data, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}

	now := time.Now().UTC().Format(timeLayout)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO prefs (chat_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		chatID, string(data), now,
	)
	if err != nil {
		return fmt.Errorf("upsert prefs: %w", err)
	}
	return nil
}

// Delete removes a chat's mapping and reports the number of rows removed.
func (s *SQLite) Delete(ctx context.Context, chatID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM prefs WHERE chat_id = ?`, chatID)
	if err != nil {
		return 0, fmt.Errorf("delete prefs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
