// Package geo holds the distance primitives shared by the matcher, the geocoder guard and enrichment.
package geo

import "math"

const (
	// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
	EarthRadiusMeters = 6371000.0

	// MilesPerMeter converts meters to statute miles.
	MilesPerMeter = 0.000621371

	// WalkingMetersPerMinute is the assumed average walking pace (≈ 12.5 min/km).
	WalkingMetersPerMinute = 80.0
)

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceMeters returns the great-circle distance between a and b.
// It is symmetric, returns exactly 0 for identical points and never NaN for antipodes.
func DistanceMeters(a, b Point) float64 {
	if a == b {
		return 0
	}
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := lat2 - lat1
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h slightly outside [0,1] near the antipode
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// MetersToMiles converts a distance in meters to miles.
func MetersToMiles(m float64) float64 {
	return m * MilesPerMeter
}

// MetersToWalkMinutes converts a distance to whole walking minutes.
func MetersToWalkMinutes(m float64) int {
	return int(math.Round(m / WalkingMetersPerMinute))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
