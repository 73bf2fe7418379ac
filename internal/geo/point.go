package geo

import "github.com/paulmach/orb"

// Point represents a geographical point defined by its latitude and longitude in decimal degrees (WGS84).
type Point struct {
	Latitude  float64 // Latitude of the geographical point.
	Longitude float64 // Longitude of the geographical point.
}

// NewPoint returns a Point for the given latitude and longitude.
func NewPoint(lat, long float64) Point {
	return Point{Latitude: lat, Longitude: long}
}

// Orb returns the point in orb's (longitude, latitude) order.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// String formats the point in sexagesimal notation, latitude first.
func (p Point) String() string {
	return FormatPoint(p)
}
