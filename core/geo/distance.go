// Package geo holds great-circle helpers shared by ranking and landmark search.
package geo

import (
	"math"

	"github.com/kilianp07/ambudispatch/core/model"
)

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0088

// DistanceKm returns the haversine distance between a and b. The endpoints are
// ordered before computing so the result is bit-for-bit symmetric.
func DistanceKm(a, b model.Coordinate) float64 {
	if a == b {
		return 0
	}
	if less(b, a) {
		a, b = b, a
	}
	lat1 := toRad(a.Latitude)
	lat2 := toRad(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

func less(a, b model.Coordinate) bool {
	if a.Latitude != b.Latitude {
		return a.Latitude < b.Latitude
	}
	return a.Longitude < b.Longitude
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
