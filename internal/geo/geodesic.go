package geo

import "github.com/tidwall/geodesic"

// DistanceKm returns the geodesic distance in kilometres between two points on the WGS84 ellipsoid.
func DistanceKm(p1, p2 Point) float64 {
	const metersPerKm = 1000

	var meters float64
	geodesic.WGS84.Inverse(p1.Latitude, p1.Longitude, p2.Latitude, p2.Longitude, &meters, nil, nil)

	return meters / metersPerKm
}

// Destination returns the point reached by travelling distanceKm from origin along the geodesic
// that leaves it with the given bearing (degrees clockwise from north).
func Destination(origin Point, bearing, distanceKm float64) Point {
	const metersPerKm = 1000

	var lat, long float64
	geodesic.WGS84.Direct(origin.Latitude, origin.Longitude, bearing, distanceKm*metersPerKm, &lat, &long, nil)

	return Point{Latitude: lat, Longitude: long}
}
