package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrInvalidBoundingBox is returned when the bottom-left corner lies north or east of the top-right corner.
var ErrInvalidBoundingBox = errors.New("invalid bounding box")

// BoundingBox is a rectangle in latitude/longitude defined by its bottom-left and top-right corners.
type BoundingBox struct {
	BottomLeft Point // BottomLeft is the south-west corner.
	TopRight   Point // TopRight is the north-east corner.
}

// NewBoundingBox validates the corner ordering and returns the bounding box.
func NewBoundingBox(bottomLeft, topRight Point) (BoundingBox, error) {
	if bottomLeft.Latitude > topRight.Latitude || bottomLeft.Longitude > topRight.Longitude {
		return BoundingBox{}, fmt.Errorf("%w: %s -> %s", ErrInvalidBoundingBox, bottomLeft, topRight)
	}

	return BoundingBox{BottomLeft: bottomLeft, TopRight: topRight}, nil
}

// TopLeft returns the north-west corner.
func (b BoundingBox) TopLeft() Point {
	return Point{Latitude: b.TopRight.Latitude, Longitude: b.BottomLeft.Longitude}
}

// BottomRight returns the south-east corner.
func (b BoundingBox) BottomRight() Point {
	return Point{Latitude: b.BottomLeft.Latitude, Longitude: b.TopRight.Longitude}
}

// Bound converts the box to an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: b.BottomLeft.Orb(), Max: b.TopRight.Orb()}
}

// HeightKm is the geodesic length of the western edge.
func (b BoundingBox) HeightKm() float64 {
	return DistanceKm(b.BottomLeft, b.TopLeft())
}

// WidthKm is the geodesic length of the southern edge.
func (b BoundingBox) WidthKm() float64 {
	return DistanceKm(b.BottomLeft, b.BottomRight())
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%s -> %s", b.BottomLeft, b.TopRight)
}

// BoundingBoxAround builds the box enclosing the points reached from center by travelling the given
// distances (in kilometres) north, east, south and west. Corner coordinates are rounded to 6 decimals.
func BoundingBoxAround(center Point, topKm, rightKm, bottomKm, leftKm float64) (BoundingBox, error) {
	if topKm <= 0 || rightKm <= 0 || bottomKm <= 0 || leftKm <= 0 {
		return BoundingBox{}, fmt.Errorf("%w: distances must be positive", ErrInvalidBoundingBox)
	}

	north := Destination(center, 0, topKm)
	east := Destination(center, 90, rightKm)
	south := Destination(center, 180, bottomKm)
	west := Destination(center, 270, leftKm)

	bottomLeft := Point{Latitude: round6(south.Latitude), Longitude: round6(west.Longitude)}
	topRight := Point{Latitude: round6(north.Latitude), Longitude: round6(east.Longitude)}

	return NewBoundingBox(bottomLeft, topRight)
}

func round6(v float64) float64 {
	const factor = 1e6
	return math.Round(v*factor) / factor
}
