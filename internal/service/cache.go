package service

import (
	"bytes"
	"context"
	"image"
	"log/slog"

	"github.com/UnknownOlympus/chil/internal/metrics"
	"github.com/UnknownOlympus/chil/internal/repository"
	"github.com/UnknownOlympus/chil/internal/topomap"
	"github.com/UnknownOlympus/chil/internal/wms"
)

// CachedFetcher serves tile bodies from a store and falls back to the wrapped fetcher. Only bodies
// that decode as images are stored. Cache failures are logged and never fail a fetch.
type CachedFetcher struct {
	next    topomap.TileFetcher
	key     func(wms.GetMapRequest) string
	store   repository.Interface
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewCachedFetcher wraps next with store; key maps a request to its cache key.
func NewCachedFetcher(
	next topomap.TileFetcher,
	key func(wms.GetMapRequest) string,
	store repository.Interface,
	metrics *metrics.Metrics,
	log *slog.Logger,
) *CachedFetcher {
	return &CachedFetcher{next: next, key: key, store: store, metrics: metrics, log: log}
}

// GetMap implements topomap.TileFetcher.
func (cf *CachedFetcher) GetMap(ctx context.Context, req wms.GetMapRequest) ([]byte, error) {
	key := cf.key(req)

	body, found, err := cf.store.Get(ctx, key)
	switch {
	case err != nil:
		cf.metrics.CacheErrors.Inc()
		cf.log.WarnContext(ctx, "Failed to read tile cache", "error", err)
	case found && isImage(body):
		cf.metrics.TilesFetched.WithLabelValues(metrics.StatusCacheHit).Inc()
		return body, nil
	case found:
		cf.log.WarnContext(ctx, "Cached tile is not an image, fetching it again", "key", key)
	}

	body, err = cf.next.GetMap(ctx, req)
	if err != nil {
		return nil, err
	}
	if !isImage(body) {
		return body, nil
	}

	if err = cf.store.Put(ctx, key, body); err != nil {
		cf.metrics.CacheErrors.Inc()
		cf.log.WarnContext(ctx, "Failed to write tile cache", "error", err)
	}

	return body, nil
}

func isImage(body []byte) bool {
	_, _, err := image.DecodeConfig(bytes.NewReader(body))
	return err == nil
}
