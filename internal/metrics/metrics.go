package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tile fetch outcomes used as the status label.
const (
	StatusSuccess        = "success"
	StatusDecodeError    = "decode_error"
	StatusTransportError = "transport_error"
	StatusCacheHit       = "cache_hit"
)

type Metrics struct {
	TilesFetched   *prometheus.CounterVec
	CacheErrors    prometheus.Counter
	RequestSeconds *prometheus.HistogramVec
	ActiveWorkers  prometheus.Gauge
	GridBlocks     prometheus.Gauge
	BuildSeconds   prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		TilesFetched: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "chil_tiles_fetched_total",
			Help: "Total number of block fetches by outcome, cache hits are also counted as successes.",
		}, []string{"status"}),
		CacheErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chil_tile_cache_errors_total",
			Help: "Total number of failed tile cache reads and writes.",
		}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chil_tile_request_duration_seconds",
			Help:    "Duration of block fetches by outcome.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"status"}),
		ActiveWorkers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "chil_active_fetch_workers",
			Help: "Current number of workers fetching a block.",
		}),
		GridBlocks: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "chil_grid_blocks",
			Help: "Number of blocks in the last built grid.",
		}),
		BuildSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "chil_map_build_duration_seconds",
			Help:    "Duration of a whole map build, from grid to saved image.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

// WriteToFile dumps every metric of gatherer to path in the Prometheus text format, ready for the
// node exporter textfile collector.
func WriteToFile(gatherer prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
