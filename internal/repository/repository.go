package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedDSN is returned by Open when the cache location cannot be interpreted.
var ErrUnsupportedDSN = errors.New("unsupported cache location")

// Interface is a key/value store of raw tile bodies. Keys are the encoded GetMap queries.
type Interface interface {
	// Get returns the body stored under key. The boolean is false when there is none.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores body under key, replacing any previous value.
	Put(ctx context.Context, key string, body []byte) error
	// Close releases the underlying connections.
	Close() error
}

// Open opens the tile cache described by dsn. A postgres:// or postgresql:// URL selects the
// PostgreSQL store, anything else is a path to a SQLite database file.
func Open(ctx context.Context, dsn string, log *slog.Logger) (Interface, error) {
	switch {
	case dsn == "":
		return nil, fmt.Errorf("%w: empty location", ErrUnsupportedDSN)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		pool, err := NewDatabase(ctx, dsn)
		if err != nil {
			return nil, err
		}
		store := NewPostgresStore(pool, log)
		if err = store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case strings.Contains(dsn, "://"):
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDSN, dsn)
	default:
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create cache directory: %w", err)
			}
		}
		return NewSQLiteStore(ctx, dsn, log)
	}
}
