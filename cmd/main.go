package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/UnknownOlympus/chil/internal/config"
	"github.com/UnknownOlympus/chil/internal/geo"
	"github.com/UnknownOlympus/chil/internal/geocoding"
	"github.com/UnknownOlympus/chil/internal/metrics"
	"github.com/UnknownOlympus/chil/internal/repository"
	"github.com/UnknownOlympus/chil/internal/service"
	"github.com/UnknownOlympus/chil/internal/topomap"
	"github.com/UnknownOlympus/chil/internal/wms"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newRootCmd returns the chil command. Without arguments it prints its help.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chil",
		Short: "Build printable topographic maps from a WMS service",
		Long: "chil fetches a topographic map around a point from a WMS service in blocks of at most " +
			"2048 pixels, composes them into one image and saves a copy framed by sexagesimal rulers.",
		Example: "  chil --center_lat 42.925 --center_long 12.89 --scale 25000 --cm_height 60 --cm_width 60\n" +
			"  chil --place Assisi --extension webp --cache tiles.db",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().NFlag() == 0 && !hasEnvironment() {
				return cmd.Help()
			}

			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if err = cfg.Validate(); err != nil {
				return err
			}
			level, _ := config.ParseLogLevel(cfg.LogLevel)
			logger := setupLogger(stderr, cfg.Env, level)

			if err = run(cmd.Context(), cfg, logger, stdout); err != nil {
				logger.ErrorContext(cmd.Context(), "Map build failed", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	config.RegisterFlags(cmd.Flags())

	return cmd
}

// hasEnvironment reports whether the map is configured through CHIL_ variables only.
func hasEnvironment() bool {
	for _, key := range []string{"CHIL_CENTER_LAT", "CHIL_PLACE"} {
		if _, ok := os.LookupEnv(key); ok {
			return true
		}
	}
	return false
}

// run wires the tile source, the optional cache and geocoder, builds the map and prints its summary.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) (err error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)
	if cfg.MetricsFile != "" {
		defer func() {
			if werr := metrics.WriteToFile(reg, cfg.MetricsFile); werr != nil {
				logger.ErrorContext(ctx, "Failed to write metrics", "error", werr)
				err = errors.Join(err, werr)
			}
		}()
	}

	client := wms.NewClient(wms.Config{
		BaseURL: cfg.WMSURL,
		MapFile: cfg.WMSMap,
		Layers:  cfg.WMSLayers,
		Timeout: cfg.Timeout,
	}, logger)

	var fetcher topomap.TileFetcher = client
	if cfg.Cache != "" {
		store, oerr := repository.Open(ctx, cfg.Cache, logger)
		if oerr != nil {
			return fmt.Errorf("failed to open tile cache: %w", oerr)
		}
		defer store.Close()
		fetcher = service.NewCachedFetcher(client, client.Key, store, appMetrics, logger)
		logger.InfoContext(ctx, "Tile cache enabled", "location", cfg.Cache)
	}

	req := service.Request{
		Place:      cfg.Place,
		Resolution: cfg.Resolution,
		Scale:      cfg.Scale,
		HeightCm:   cfg.HeightCm,
		WidthCm:    cfg.WidthCm,
		Title:      cfg.Title,
	}

	var geocoder geocoding.Provider
	if cfg.HasCenter {
		center := geo.NewPoint(cfg.CenterLat, cfg.CenterLong)
		req.Center = &center
	} else {
		geocoder, err = geocoding.NewProvider(geocoding.ProviderConfig{
			Type:     geocoding.ProviderType(cfg.Geocoder),
			APIKey:   cfg.GeocoderKey,
			Language: cfg.GeocoderLanguage,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create geocoding provider: %w", err)
		}
		logger.InfoContext(ctx, "Geocoding provider initialized", "type", cfg.Geocoder)
	}

	mapService := service.NewMapService(logger, fetcher, geocoder, appMetrics, cfg.Workers, cfg.BestEffort)

	m, err := mapService.NewMap(ctx, req)
	if err != nil {
		return err
	}

	result, err := mapService.Render(ctx, m, service.Output{
		Folder:    cfg.Folder,
		Filename:  cfg.Filename,
		Extension: cfg.Extension,
		Footprint: cfg.Footprint,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, m.String())
	fmt.Fprintf(stdout, "Blocks: %d fetched of %d\n", result.Report.Fetched, result.Report.Total)
	fmt.Fprintln(stdout, "Map:", result.MapPath)
	fmt.Fprintln(stdout, "Map with rulers:", result.RulersPath)
	if result.FootprintPath != "" {
		fmt.Fprintln(stdout, "Footprint:", result.FootprintPath)
	}

	return nil
}

// setupLogger returns a logger writing to w; env selects the format and level the threshold.
func setupLogger(w io.Writer, env string, level slog.Level) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}))
	case envDev:
		log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.Attr{}
				}
				return a
			},
		}))
	default:
		log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.Attr{}
				}
				return a
			},
		}))

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
