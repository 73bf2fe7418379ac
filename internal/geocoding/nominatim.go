package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/UnknownOlympus/chil/internal/geo"
)

const (
	nominatimURL       = "https://nominatim.openstreetmap.org/search"
	nominatimUserAgent = "chil/1.0 (https://github.com/UnknownOlympus/chil)"
	nominatimTimeout   = 10 * time.Second
	defaultLanguage    = "en"
)

// NominatimProvider implements the Provider interface using OpenStreetMap's Nominatim API.
// The public instance allows one request per second, enforced by a limiter.
type NominatimProvider struct {
	client    HTTPClient
	baseURL   string
	language  string
	limiter   *rate.Limiter
	log       *slog.Logger
	userAgent string // required by the Nominatim usage policy
}

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NominatimOption configures a NominatimProvider.
type NominatimOption func(*NominatimProvider)

// WithLanguage sets the preferred language of the results. Empty keeps the default.
func WithLanguage(language string) NominatimOption {
	return func(np *NominatimProvider) {
		if language != "" {
			np.language = language
		}
	}
}

// WithRateLimit sets the number of requests per second. Zero keeps the default of one.
func WithRateLimit(perSecond int) NominatimOption {
	return func(np *NominatimProvider) {
		if perSecond > 0 {
			np.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithBaseURL points the provider at another Nominatim instance.
func WithBaseURL(baseURL string) NominatimOption {
	return func(np *NominatimProvider) {
		if baseURL != "" {
			np.baseURL = baseURL
		}
	}
}

// nominatimResponse represents the JSON response from Nominatim API.
type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Common errors for Nominatim provider.
var (
	ErrNominatimEmptyResponse = errors.New("nominatim API returned empty response")
	ErrNominatimInvalidCoords = errors.New("nominatim API returned invalid coordinates")
	ErrNominatimStatus        = errors.New("nominatim API returned unexpected status")
)

// NewNominatimProvider creates a provider using the public Nominatim endpoint.
func NewNominatimProvider(log *slog.Logger, opts ...NominatimOption) *NominatimProvider {
	return NewNominatimProviderWithClient(&http.Client{Timeout: nominatimTimeout}, log, opts...)
}

// NewNominatimProviderWithClient creates a Nominatim provider with a custom HTTP client.
func NewNominatimProviderWithClient(client HTTPClient, log *slog.Logger, opts ...NominatimOption) *NominatimProvider {
	np := &NominatimProvider{
		client:    client,
		baseURL:   nominatimURL,
		language:  defaultLanguage,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		log:       log,
		userAgent: nominatimUserAgent,
	}
	for _, opt := range opts {
		opt(np)
	}

	return np
}

// Geocode converts a place name to coordinates. When the full name yields nothing, the leading
// component is dropped and the search repeated, e.g. "Rifugio Vallonina, Fiastra, Macerata"
// falls back to "Fiastra, Macerata". At least two components are always kept.
func (np *NominatimProvider) Geocode(ctx context.Context, place string) (*geo.Point, error) {
	np.log.DebugContext(ctx, "Geocoding using Nominatim", "place", place)

	variations := placeFallbacks(place)
	for idx, variation := range variations {
		point, err := np.geocodeSingle(ctx, variation)
		if err == nil {
			if idx > 0 {
				np.log.InfoContext(ctx, "Geocoded using fallback place",
					"original", place,
					"fallback", variation,
					"fallback_level", idx)
			}
			return point, nil
		}

		if !errors.Is(err, ErrNominatimEmptyResponse) {
			return nil, err
		}

		np.log.DebugContext(ctx, "Place variation returned no results, trying fallback",
			"variation", variation,
			"fallback_level", idx)
	}

	np.log.WarnContext(ctx, "All place fallbacks exhausted", "place", place, "variations_tried", len(variations))
	return nil, ErrNominatimEmptyResponse
}

// placeFallbacks returns the place followed by progressively less specific variations.
func placeFallbacks(place string) []string {
	parts := strings.Split(place, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	variations := []string{strings.TrimSpace(place)}
	const minComponents = 2
	for start := 1; len(parts)-start >= minComponents; start++ {
		variations = append(variations, strings.Join(parts[start:], ", "))
	}

	return variations
}

func (np *NominatimProvider) geocodeSingle(ctx context.Context, place string) (*geo.Point, error) {
	reqURL, err := url.Parse(np.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("q", place)
	query.Set("format", "json")
	query.Set("limit", "1")
	query.Set("accept-language", np.language)
	reqURL.RawQuery = query.Encode()

	if err = np.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", np.userAgent)

	resp, err := np.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		np.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w %d: %s", ErrNominatimStatus, resp.StatusCode, string(body))
	}

	var results []nominatimResponse
	if err = json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNominatimEmptyResponse
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("%w: invalid latitude: %s", ErrNominatimInvalidCoords, results[0].Lat)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%w: invalid longitude: %s", ErrNominatimInvalidCoords, results[0].Lon)
	}

	np.log.DebugContext(ctx, "Nominatim found result", "place", place, "name", results[0].DisplayName,
		"lat", lat, "lon", lon)

	return &geo.Point{Latitude: lat, Longitude: lon}, nil
}
