package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/chil/internal/geo"
	"github.com/UnknownOlympus/chil/internal/geocoding"
	"github.com/UnknownOlympus/chil/internal/metrics"
	"github.com/UnknownOlympus/chil/internal/topomap"
)

// ErrNoCenter is returned when a map request has neither a centre nor a place to geocode.
var ErrNoCenter = errors.New("map centre is not set and no place to geocode was given")

// MapService plans, fetches, composes and saves topographic maps.
type MapService struct {
	log        *slog.Logger        // Logger for logging service activities
	fetcher    topomap.TileFetcher // Source of block images, possibly cached
	geocoder   geocoding.Provider  // Resolves place names, may be nil
	metrics    *metrics.Metrics    // Metrics for tracking fetch performance
	numWorkers int                 // Concurrent fetches; 0 means one per block
	bestEffort bool                // Compose even when some blocks have no image
}

// NewMapService creates a new instance of MapService.
func NewMapService(
	log *slog.Logger,
	fetcher topomap.TileFetcher,
	geocoder geocoding.Provider,
	metrics *metrics.Metrics,
	numWorkers int,
	bestEffort bool,
) *MapService {
	return &MapService{
		log:        log,
		fetcher:    fetcher,
		geocoder:   geocoder,
		metrics:    metrics,
		numWorkers: numWorkers,
		bestEffort: bestEffort,
	}
}

// Request describes the map to print: a paper frame at a scale around a centre point.
type Request struct {
	Center     *geo.Point // Center of the map; resolved from Place when nil
	Place      string     // Place name to geocode when Center is nil
	Resolution int        // Print resolution in pixels per inch
	Scale      int        // Scale denominator
	HeightCm   float64    // Paper frame height
	WidthCm    float64    // Paper frame width
	Title      string
}

// NewMap resolves the centre and returns the map whose box spans the requested frame around it.
func (ms *MapService) NewMap(ctx context.Context, req Request) (*topomap.Map, error) {
	center, err := ms.resolveCenter(ctx, req)
	if err != nil {
		return nil, err
	}

	heightKm := topomap.ExtentKmAtScale(req.HeightCm, req.Scale)
	widthKm := topomap.ExtentKmAtScale(req.WidthCm, req.Scale)

	bbox, err := geo.BoundingBoxAround(*center, heightKm/2, widthKm/2, heightKm/2, widthKm/2)
	if err != nil {
		return nil, fmt.Errorf("failed to compute map box: %w", err)
	}

	ms.log.InfoContext(ctx, "Map box computed",
		"center", center.String(),
		"bottom_left", bbox.BottomLeft.String(),
		"top_right", bbox.TopRight.String(),
		"height_km", heightKm,
		"width_km", widthKm)

	return topomap.New(bbox.BottomLeft, bbox.TopRight, req.Resolution, req.Scale,
		topomap.WithTitle(req.Title),
		topomap.WithFrameCm(req.HeightCm, req.WidthCm),
		topomap.WithExtentKm(heightKm, widthKm),
		topomap.WithLogger(ms.log))
}

func (ms *MapService) resolveCenter(ctx context.Context, req Request) (*geo.Point, error) {
	if req.Center != nil {
		return req.Center, nil
	}
	if req.Place == "" || ms.geocoder == nil {
		return nil, ErrNoCenter
	}

	center, err := ms.geocoder.Geocode(ctx, req.Place)
	if err != nil {
		return nil, fmt.Errorf("failed to geocode %q: %w", req.Place, err)
	}
	ms.log.InfoContext(ctx, "Place geocoded", "place", req.Place, "center", center.String())

	return center, nil
}

// BlockFailure is a block whose image could not be fetched.
type BlockFailure struct {
	Block *topomap.Block
	Err   error
}

// FetchReport summarises a fetch batch.
type FetchReport struct {
	Total    int
	Fetched  int
	Failures []BlockFailure
}

type fetchJob struct {
	idx   int
	block *topomap.Block
}

// FetchBlocks fetches every block of the grid with a pool of workers and waits for all of them.
// A failed block is logged and reported; it never stops the others.
func (ms *MapService) FetchBlocks(ctx context.Context, m *topomap.Map) FetchReport {
	blocks := m.Grid.Blocks()
	report := FetchReport{Total: len(blocks)}
	if len(blocks) == 0 {
		return report
	}

	numWorkers := ms.numWorkers
	if numWorkers <= 0 || numWorkers > len(blocks) {
		numWorkers = len(blocks)
	}

	ms.log.InfoContext(ctx, "Fetching blocks. Starting worker pool.", "jobs", len(blocks), "num_workers", numWorkers)

	// each worker writes only the slot of the job it owns
	errs := make([]error, len(blocks))
	jobs := make(chan fetchJob, len(blocks))
	var wgr sync.WaitGroup

	for i := 1; i <= numWorkers; i++ {
		wgr.Add(1)
		go ms.worker(ctx, i, &wgr, jobs, errs)
	}

	for idx, block := range blocks {
		jobs <- fetchJob{idx: idx, block: block}
	}
	close(jobs)

	wgr.Wait()

	for idx, err := range errs {
		if err != nil {
			report.Failures = append(report.Failures, BlockFailure{Block: blocks[idx], Err: err})
			continue
		}
		report.Fetched++
	}
	ms.log.InfoContext(ctx, "Fetching finished", "fetched", report.Fetched, "failed", len(report.Failures))

	return report
}

func (ms *MapService) worker(ctx context.Context, idx int, wg *sync.WaitGroup, jobs <-chan fetchJob, errs []error) {
	defer wg.Done()
	for job := range jobs {
		ms.metrics.ActiveWorkers.Inc()
		ms.log.DebugContext(ctx, "Fetching block", "worker", idx, "block", job.block.String())

		startTime := time.Now()
		err := job.block.Fetch(ctx, ms.fetcher)
		duration := time.Since(startTime).Seconds()

		status := metrics.StatusSuccess
		switch {
		case errors.Is(err, topomap.ErrTileDecode):
			status = metrics.StatusDecodeError
		case err != nil:
			status = metrics.StatusTransportError
		}
		ms.metrics.RequestSeconds.WithLabelValues(status).Observe(duration)
		ms.metrics.TilesFetched.WithLabelValues(status).Inc()

		if err != nil {
			ms.log.ErrorContext(ctx, "Failed to fetch block", "worker", idx, "block", job.block.String(), "error", err)
		} else {
			ms.log.DebugContext(ctx, "Worker successfully fetched the block", "worker", idx, "block", job.block.String())
		}
		errs[job.idx] = err

		ms.metrics.ActiveWorkers.Dec()
	}
}
