// Package geo holds the small amount of spherical and projected geometry the
// stake-out tools need: haversine distance, bearings, destination points and the
// nearest point on a target boundary.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// EarthRadius is the mean earth radius in meters used by the closed-form formulas.
const EarthRadius = 6371000.0

const (
	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// Point represents a geographic coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// FromOrb converts an orb point ([lon, lat]) to a Point.
func FromOrb(p orb.Point) Point {
	return Point{Lat: p.Lat(), Lon: p.Lon()}
}

// Orb returns the point in orb's [lon, lat] order.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Valid reports whether the coordinate is finite and inside the WGS84 range.
func (p Point) Valid() bool {
	return Valid(p.Lon, p.Lat)
}

// Valid reports whether lng/lat are finite and inside [-180,180] x [-90,90].
func Valid(lng, lat float64) bool {
	if math.IsNaN(lng) || math.IsNaN(lat) || math.IsInf(lng, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}

// Distance calculates the Haversine distance between two points in meters.
func Distance(p1, p2 Point) float64 {
	dLat := (p2.Lat - p1.Lat) * degToRad
	dLon := (p2.Lon - p1.Lon) * degToRad
	lat1 := p1.Lat * degToRad
	lat2 := p2.Lat * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// ReferenceDistance is the geodesy library's haversine distance. It is kept
// alongside Distance so the two can be compared in tests and diagnostics.
func ReferenceDistance(p1, p2 Point) float64 {
	return orbgeo.DistanceHaversine(p1.Orb(), p2.Orb())
}

// DestinationPoint calculates the destination point from a start point, given distance (in meters) and bearing (in degrees).
func DestinationPoint(start Point, distMeters, bearing float64) Point {
	lat1 := start.Lat * degToRad
	lon1 := start.Lon * degToRad
	brng := bearing * degToRad
	ang := distMeters / EarthRadius

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(ang) +
		math.Cos(lat1)*math.Sin(ang)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(math.Sin(brng)*math.Sin(ang)*math.Cos(lat1),
		math.Cos(ang)-math.Sin(lat1)*math.Sin(lat2))

	return Point{
		Lat: lat2 * radToDeg,
		Lon: lon2 * radToDeg,
	}
}

// Bearing calculates the initial bearing (forward azimuth) from p1 to p2 in degrees [0, 360).
// Coincident points have bearing 0.
func Bearing(p1, p2 Point) float64 {
	if p1 == p2 {
		return 0
	}
	lat1 := p1.Lat * degToRad
	lat2 := p2.Lat * degToRad
	dLon := (p2.Lon - p1.Lon) * degToRad

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	brng := math.Atan2(y, x)

	return math.Mod(brng*radToDeg+360.0, 360.0)
}

// NormalizeAngle normalizes an angle difference to the range [-180, 180].
func NormalizeAngle(angleDeg float64) float64 {
	for angleDeg > 180 {
		angleDeg -= 360
	}
	for angleDeg < -180 {
		angleDeg += 360
	}
	return angleDeg
}
