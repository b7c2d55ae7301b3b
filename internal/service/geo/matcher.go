// internal/service/geo/matcher.go

package geo

import (
	"math"

	"aegis/internal/domain/geo"
)

const (
	// Mean earth radius used as the deterministic haversine reference
	earthRadiusMeters = 6371000.0

	// boundaryToleranceMeters makes the radius boundary inclusive within
	// the documented 1m tolerance: a candidate whose distance rounds to
	// the radius is still a match.
	boundaryToleranceMeters = 1.0
)

// Candidate is a position with a match radius, identified by the caller.
// Distress signals carry a caller-supplied "nearby" radius; safety alerts
// use their own radius field. Expired alerts must be filtered out by the
// caller before evaluation.
type Candidate struct {
	ID       string
	Position geo.Coordinates
	Radius   float64
}

// Distance returns the great-circle distance between two positions in
// meters, using the haversine formula on a sphere.
func Distance(a, b geo.Coordinates) float64 {
	// Convert latitude and longitude from degrees to radians
	lat1 := a.Latitude * math.Pi / 180.0
	lon1 := a.Longitude * math.Pi / 180.0
	lat2 := b.Latitude * math.Pi / 180.0
	lon2 := b.Longitude * math.Pi / 180.0

	// Haversine formula
	dLat := lat2 - lat1
	dLon := lon2 - lon1

	hSin := math.Sin(dLat / 2)
	hSin *= hSin

	vSin := math.Sin(dLon / 2)
	vSin *= vSin

	h := hSin + math.Cos(lat1)*math.Cos(lat2)*vSin

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// WithinRadius reports whether b lies within radius meters of a, boundary
// inclusive.
func WithinRadius(a, b geo.Coordinates, radius float64) bool {
	return Distance(a, b) <= radius+boundaryToleranceMeters
}

// Evaluate returns the ids of all candidates whose distance from the origin
// is within their radius, in the order the candidates were given. It is
// pure and deterministic: identical inputs always produce identical
// outputs.
func Evaluate(origin geo.Coordinates, candidates []Candidate) []string {
	var matched []string
	for _, c := range candidates {
		if WithinRadius(origin, c.Position, c.Radius) {
			matched = append(matched, c.ID)
		}
	}
	return matched
}
