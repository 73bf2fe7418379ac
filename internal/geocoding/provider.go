package geocoding

import (
	"context"

	"github.com/UnknownOlympus/chil/internal/geo"
)

// Provider resolves a place name to the point the map is centred on.
type Provider interface {
	Geocode(ctx context.Context, place string) (*geo.Point, error)
}
