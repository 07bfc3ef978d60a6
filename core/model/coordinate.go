package model

import (
	"fmt"
	"math"
)

// Coordinate is an immutable WGS84 position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// NewCoordinate validates lat/lon and returns the coordinate.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	c := Coordinate{Latitude: lat, Longitude: lon}
	if !c.Valid() {
		return Coordinate{}, fmt.Errorf("%w: %v,%v", ErrInvalidCoordinate, lat, lon)
	}
	return c, nil
}

// Valid reports whether latitude is within [-90,90] and longitude within [-180,180].
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// String formats the coordinate as "lat,lon" with six decimals. It doubles as
// the display address when reverse geocoding is unavailable.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}
