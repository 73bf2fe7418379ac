package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/UnknownOlympus/chil/internal/wms"
)

// EnvPrefix prefixes every environment variable read by Load, e.g. CHIL_SCALE.
const EnvPrefix = "CHIL"

// LevelCritical sits above slog.LevelError for unrecoverable failures.
const LevelCritical = slog.LevelError + 4

// ErrUnknownLogLevel is returned for a log level outside DEBUG, INFO, WARNING, ERROR, CRITICAL.
var ErrUnknownLogLevel = errors.New("unknown log level")

// Config holds the settings of one map build.
type Config struct {
	Env        string  `mapstructure:"env"`         // Env is the current environment: local, development, production.
	LogLevel   string  `mapstructure:"log-level"`   // LogLevel is one of DEBUG, INFO, WARNING, ERROR, CRITICAL.
	Resolution int     `mapstructure:"resolution"`  // Resolution is the print resolution in pixels per inch.
	Scale      int     `mapstructure:"scale"`       // Scale is the scale denominator.
	CenterLat  float64 `mapstructure:"center_lat"`  // CenterLat is the latitude of the map centre.
	CenterLong float64 `mapstructure:"center_long"` // CenterLong is the longitude of the map centre.
	Place      string  `mapstructure:"place"`       // Place is geocoded when no centre is given.
	HeightCm   float64 `mapstructure:"cm_height"`   // HeightCm is the paper frame height.
	WidthCm    float64 `mapstructure:"cm_width"`    // WidthCm is the paper frame width.
	Title      string  `mapstructure:"title"`
	Filename   string  `mapstructure:"filename"`
	Extension  string  `mapstructure:"extension"`
	Folder     string  `mapstructure:"folder"`

	Workers     int           `mapstructure:"workers"`      // Workers is the fetch concurrency, 0 for one per block.
	Timeout     time.Duration `mapstructure:"timeout"`      // Timeout bounds every tile request.
	BestEffort  bool          `mapstructure:"best-effort"`  // BestEffort composes maps with missing tiles.
	Cache       string        `mapstructure:"cache"`        // Cache is a SQLite path or a postgres:// DSN.
	Footprint   bool          `mapstructure:"footprint"`    // Footprint writes the GeoJSON block footprint.
	MetricsFile string        `mapstructure:"metrics-file"` // MetricsFile receives the Prometheus metrics.

	WMSURL    string `mapstructure:"wms-url"`
	WMSMap    string `mapstructure:"wms-map"`
	WMSLayers string `mapstructure:"layers"`

	Geocoder         string `mapstructure:"geocoder"`          // Geocoder is google or nominatim.
	GeocoderKey      string `mapstructure:"geocoder-key"`      // GeocoderKey is the Google Maps API key.
	GeocoderLanguage string `mapstructure:"geocoder-language"` // GeocoderLanguage is the preferred result language.

	// HasCenter is true when both centre coordinates were given explicitly.
	HasCenter bool `mapstructure:"-"`
}

// RegisterFlags declares every configuration flag on fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path of a YAML configuration file (default ./chil.yaml or ./configs/chil.yaml)")
	fs.String("env", "production", "environment: local, development, production")
	fs.String("log-level", "ERROR", "log level: DEBUG, INFO, WARNING, ERROR, CRITICAL")

	fs.Int("resolution", 200, "print resolution in pixels per inch")
	fs.Int("scale", 25000, "scale denominator, e.g. 25000 for 1:25000")
	fs.Float64("center_lat", 0, "latitude of the map centre in decimal degrees")
	fs.Float64("center_long", 0, "longitude of the map centre in decimal degrees")
	fs.String("place", "", "place name to geocode when no centre is given")
	fs.Float64("cm_height", 60, "paper frame height in centimetres")
	fs.Float64("cm_width", 60, "paper frame width in centimetres")
	fs.String("title", "", "map title")
	fs.String("filename", "Map", "output file name without extension")
	fs.String("extension", "png", "output format: png or webp")
	fs.String("folder", ".", "output folder")

	fs.Int("workers", 0, "concurrent tile requests, 0 for one per block")
	fs.Duration("timeout", wms.DefaultTimeout, "timeout of every tile request")
	fs.Bool("best-effort", false, "compose the map even when some tiles are missing")
	fs.String("cache", "", "tile cache: SQLite file path or postgres:// DSN")
	fs.Bool("footprint", false, "also write <filename>_blocks.geojson with the block grid")
	fs.String("metrics-file", "", "write Prometheus metrics to this file when done")

	fs.String("wms-url", wms.DefaultBaseURL, "WMS service URL")
	fs.String("wms-map", wms.DefaultMapFile, "WMS map file")
	fs.String("layers", wms.DefaultLayers, "WMS layers")

	fs.String("geocoder", "nominatim", "geocoding provider for --place: nominatim or google")
	fs.String("geocoder-key", "", "API key of the geocoding provider")
	fs.String("geocoder-language", "it", "preferred language of geocoding results")
}

// Load resolves the configuration from, in order of precedence, explicit flags, CHIL_ environment
// variables (a .env file is loaded first), the YAML configuration file and the flag defaults.
func Load(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("chil")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// CHIL_CENTER_LAT -> center_lat, CHIL_LOG_LEVEL -> log-level
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.HasCenter = v.IsSet("center_lat") && v.IsSet("center_long")

	return &cfg, nil
}

// Validate checks every setting and reports all violations at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Resolution <= 0 {
		errs = append(errs, fmt.Sprintf("resolution must be positive, got %d", c.Resolution))
	}
	if c.Scale <= 0 {
		errs = append(errs, fmt.Sprintf("scale must be positive, got %d", c.Scale))
	}
	if c.HeightCm <= 0 || c.WidthCm <= 0 {
		errs = append(errs, fmt.Sprintf("frame must be positive, got %gx%g cm", c.HeightCm, c.WidthCm))
	}
	if c.HasCenter {
		if c.CenterLat < -90 || c.CenterLat > 90 {
			errs = append(errs, fmt.Sprintf("center_lat must be within [-90, 90], got %g", c.CenterLat))
		}
		if c.CenterLong < -180 || c.CenterLong > 180 {
			errs = append(errs, fmt.Sprintf("center_long must be within [-180, 180], got %g", c.CenterLong))
		}
	} else if c.Place == "" {
		errs = append(errs, "center_lat and center_long are required unless place is given")
	}
	if ext := strings.ToLower(c.Extension); ext != "png" && ext != "webp" {
		errs = append(errs, fmt.Sprintf("extension must be png or webp, got %q", c.Extension))
	}
	if c.Filename == "" {
		errs = append(errs, "filename is required")
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Sprintf("workers must not be negative, got %d", c.Workers))
	}
	if c.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if c.Geocoder != "nominatim" && c.Geocoder != "google" {
		errs = append(errs, fmt.Sprintf("geocoder must be nominatim or google, got %q", c.Geocoder))
	}
	if c.Geocoder == "google" && c.Place != "" && !c.HasCenter && c.GeocoderKey == "" {
		errs = append(errs, "geocoder-key is required by the google geocoder")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParseLogLevel maps DEBUG, INFO, WARNING, ERROR and CRITICAL, in any case, to slog levels.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARNING", "WARN":
		return slog.LevelWarn, nil
	case "ERROR", "":
		return slog.LevelError, nil
	case "CRITICAL":
		return LevelCritical, nil
	default:
		return slog.LevelError, fmt.Errorf("%w: %q", ErrUnknownLogLevel, level)
	}
}
