package model

// Landmark is a named point of interest near a search center.
type Landmark struct {
	Name       string     `json:"name"`
	Location   Coordinate `json:"location"`
	Category   string     `json:"category"`
	Address    string     `json:"address,omitempty"`
	DistanceKm float64    `json:"distance_km"`
}
