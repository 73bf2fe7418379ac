package service_test

import (
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/UnknownOlympus/chil/internal/geo"
	"github.com/UnknownOlympus/chil/internal/metrics"
	"github.com/UnknownOlympus/chil/internal/service"
	"github.com/UnknownOlympus/chil/internal/wms"
	"github.com/UnknownOlympus/chil/test/mocks"
)

const cacheKey = "tile-key"

func newCachedFetcher(t *testing.T) (*service.CachedFetcher, *mocks.TileFetcher, *mocks.Store, *metrics.Metrics) {
	t.Helper()
	next := mocks.NewTileFetcher(t)
	store := mocks.NewStore(t)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	key := func(wms.GetMapRequest) string { return cacheKey }

	return service.NewCachedFetcher(next, key, store, m, slog.New(slog.DiscardHandler)), next, store, m
}

func TestCachedFetcher_GetMap(t *testing.T) {
	ctx := t.Context()
	req := wms.GetMapRequest{
		BBox:  geo.BoundingBox{BottomLeft: assisiBottomLeft, TopRight: assisiTopRight},
		Width: 1, Height: 1,
	}

	t.Run("cache hit", func(t *testing.T) {
		fetcher, _, store, m := newCachedFetcher(t)
		body := pngBody(t)

		store.On("Get", ctx, cacheKey).Return(body, true, nil).Once()

		got, err := fetcher.GetMap(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, body, got)
		assert.InDelta(t, 1, testutil.ToFloat64(m.TilesFetched.WithLabelValues(metrics.StatusCacheHit)), 0)
	})

	t.Run("cache miss stores the tile", func(t *testing.T) {
		fetcher, next, store, _ := newCachedFetcher(t)
		body := pngBody(t)

		store.On("Get", ctx, cacheKey).Return(nil, false, nil).Once()
		next.On("GetMap", ctx, req).Return(body, nil).Once()
		store.On("Put", ctx, cacheKey, body).Return(nil).Once()

		got, err := fetcher.GetMap(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, body, got)
	})

	t.Run("bodies that are not images are not stored", func(t *testing.T) {
		fetcher, next, store, _ := newCachedFetcher(t)

		store.On("Get", ctx, cacheKey).Return(nil, false, nil).Once()
		next.On("GetMap", ctx, req).Return([]byte("maintenance"), nil).Once()

		got, err := fetcher.GetMap(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, []byte("maintenance"), got)
		store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("corrupted cache entry is fetched again", func(t *testing.T) {
		fetcher, next, store, _ := newCachedFetcher(t)
		body := pngBody(t)

		store.On("Get", ctx, cacheKey).Return([]byte("garbage"), true, nil).Once()
		next.On("GetMap", ctx, req).Return(body, nil).Once()
		store.On("Put", ctx, cacheKey, body).Return(nil).Once()

		got, err := fetcher.GetMap(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, body, got)
	})

	t.Run("cache failures do not fail the fetch", func(t *testing.T) {
		fetcher, next, store, m := newCachedFetcher(t)
		body := pngBody(t)

		store.On("Get", ctx, cacheKey).Return(nil, false, assert.AnError).Once()
		next.On("GetMap", ctx, req).Return(body, nil).Once()
		store.On("Put", ctx, cacheKey, body).Return(assert.AnError).Once()

		got, err := fetcher.GetMap(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, body, got)
		assert.InDelta(t, 2, testutil.ToFloat64(m.CacheErrors), 0)
	})

	t.Run("fetch error", func(t *testing.T) {
		fetcher, next, store, _ := newCachedFetcher(t)

		store.On("Get", ctx, cacheKey).Return(nil, false, nil).Once()
		next.On("GetMap", ctx, req).Return(nil, assert.AnError).Once()

		_, err := fetcher.GetMap(ctx, req)

		require.ErrorIs(t, err, assert.AnError)
	})
}
