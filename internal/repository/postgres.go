package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxPoolConns = 8

// Database is the subset of pgxpool.Pool used by the PostgreSQL store.
type Database interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore keeps tile bodies in a PostgreSQL table.
type PostgresStore struct {
	db  Database
	log *slog.Logger
}

// NewDatabase connects a pool to the PostgreSQL server at dsn and checks it answers.
func NewDatabase(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database dsn: %w", err)
	}
	cfg.MaxConns = maxPoolConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// NewPostgresStore creates a new instance of PostgresStore with the provided Database.
func NewPostgresStore(db Database, log *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log}
}

// Migrate creates the tiles table when it does not exist.
func (r *PostgresStore) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS tiles (
			key        TEXT PRIMARY KEY,
			body       BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tiles table: %w", err)
	}

	return nil
}

// Get retrieves the tile body stored under key.
func (r *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `
		SELECT body
		FROM tiles
		WHERE key = $1;
	`

	var body []byte
	err := r.db.QueryRow(ctx, query, key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query tile: %w", err)
	}

	r.log.DebugContext(ctx, "Tile found in cache", "key", key, "bytes", len(body))

	return body, true, nil
}

// Put stores a tile body under key, replacing a previous value.
func (r *PostgresStore) Put(ctx context.Context, key string, body []byte) error {
	query := `
		INSERT INTO tiles (key, body)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET
			body = EXCLUDED.body,
			created_at = now();
	`

	if _, err := r.db.Exec(ctx, query, key, body); err != nil {
		return fmt.Errorf("failed to store tile: %w", err)
	}

	return nil
}

// Close closes the connection pool.
func (r *PostgresStore) Close() error {
	r.db.Close()
	return nil
}
