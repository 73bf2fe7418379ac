package repository_test

import (
	"log/slog"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnknownOlympus/chil/internal/repository"
)

const (
	getTileQuery = `
		SELECT body
		FROM tiles
		WHERE key = $1;
	`
	putTileQuery = `
		INSERT INTO tiles (key, body)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET
			body = EXCLUDED.body,
			created_at = now();
	`
	tileKey = "BBOX=42.88,12.84,42.96,12.93&HEIGHT=2048&WIDTH=2048"
)

func TestPostgresStore_Migrate(t *testing.T) {
	t.Parallel()
	logger := slog.Default()
	ctx := t.Context()

	t.Run("error - create table", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := repository.NewPostgresStore(mock, logger)

		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS tiles")).
			WillReturnError(assert.AnError)

		err = store.Migrate(ctx)

		require.ErrorContains(t, err, "failed to create tiles table")
		require.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success - create table", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := repository.NewPostgresStore(mock, logger)

		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS tiles")).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))

		require.NoError(t, store.Migrate(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Get(t *testing.T) {
	t.Parallel()
	logger := slog.Default()
	ctx := t.Context()

	t.Run("error - query tile", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := repository.NewPostgresStore(mock, logger)

		mock.ExpectQuery(regexp.QuoteMeta(getTileQuery)).
			WithArgs(tileKey).
			WillReturnError(assert.AnError)

		body, found, err := store.Get(ctx, tileKey)

		require.ErrorContains(t, err, "failed to query tile")
		require.ErrorIs(t, err, assert.AnError)
		assert.False(t, found)
		assert.Nil(t, body)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success - tile not cached", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := repository.NewPostgresStore(mock, logger)

		mock.ExpectQuery(regexp.QuoteMeta(getTileQuery)).
			WithArgs(tileKey).
			WillReturnError(pgx.ErrNoRows)

		body, found, err := store.Get(ctx, tileKey)

		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, body)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success - tile cached", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := repository.NewPostgresStore(mock, logger)

		mock.ExpectQuery(regexp.QuoteMeta(getTileQuery)).
			WithArgs(tileKey).
			WillReturnRows(pgxmock.NewRows([]string{"body"}).AddRow([]byte("png")))

		body, found, err := store.Get(ctx, tileKey)

		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("png"), body)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Put(t *testing.T) {
	t.Parallel()
	logger := slog.Default()
	ctx := t.Context()
	body := []byte("png")

	t.Run("error - store tile", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := repository.NewPostgresStore(mock, logger)

		mock.ExpectExec(regexp.QuoteMeta(putTileQuery)).
			WithArgs(tileKey, body).
			WillReturnError(assert.AnError)

		err = store.Put(ctx, tileKey, body)

		require.ErrorContains(t, err, "failed to store tile")
		require.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success - store tile", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := repository.NewPostgresStore(mock, logger)

		mock.ExpectExec(regexp.QuoteMeta(putTileQuery)).
			WithArgs(tileKey, body).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, store.Put(ctx, tileKey, body))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Close(t *testing.T) {
	t.Parallel()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	store := repository.NewPostgresStore(mock, slog.Default())
	mock.ExpectClose()

	require.NoError(t, store.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
