package geocoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"googlemaps.github.io/maps"

	"github.com/UnknownOlympus/chil/internal/geo"
)

// GoogleProvider resolves places with the Google Maps Geocoding API.
type GoogleProvider struct {
	client   GoogleAPIClient
	language string
	log      *slog.Logger
}

// GoogleAPIClient is the part of *maps.Client used by the provider.
type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// ErrEmptyResponse is returned when the Google Maps API responds with an empty result.
var ErrEmptyResponse = errors.New("get empty response from Google Maps API")

// NewGoogleProvider wraps a Google Maps client.
func NewGoogleProvider(client GoogleAPIClient, language string, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, language: language, log: log}
}

// Geocode returns the location of the first result for place.
func (gp *GoogleProvider) Geocode(ctx context.Context, place string) (*geo.Point, error) {
	gp.log.DebugContext(ctx, "Geocoding using Google Maps", "place", place)

	req := maps.GeocodingRequest{Address: place, Language: gp.language}
	results, err := gp.client.Geocode(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to geocode place: %w", err)
	}

	if len(results) == 0 {
		return nil, ErrEmptyResponse
	}
	location := results[0].Geometry.Location
	gp.log.DebugContext(ctx, "Google Maps found result",
		"place", place, "formatted", results[0].FormattedAddress, "lat", location.Lat, "lon", location.Lng)

	return &geo.Point{Latitude: location.Lat, Longitude: location.Lng}, nil
}
