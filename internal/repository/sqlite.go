package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps tile bodies in a local SQLite database file.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path and prepares the tiles table.
func NewSQLiteStore(ctx context.Context, path string, log *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// fetch workers write concurrently, sqlite takes one writer at a time
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tiles (
			key        TEXT PRIMARY KEY,
			body       BLOB NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tiles table: %w", err)
	}

	return &SQLiteStore{db: db, log: log}, nil
}

// Get retrieves the tile body stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, "SELECT body FROM tiles WHERE key = ?", key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query tile: %w", err)
	}

	s.log.DebugContext(ctx, "Tile found in cache", "key", key, "bytes", len(body))

	return body, true, nil
}

// Put stores a tile body under key, replacing a previous value.
func (s *SQLiteStore) Put(ctx context.Context, key string, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO tiles (key, body, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)", key, body)
	if err != nil {
		return fmt.Errorf("failed to store tile: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
