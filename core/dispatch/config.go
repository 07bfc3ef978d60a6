package dispatch

import (
	"fmt"

	"github.com/kilianp07/ambudispatch/core/model"
)

// Config tunes dispatch decisions.
type Config struct {
	// MaxCandidates is how many ranked units a dispatch keeps.
	MaxCandidates int `json:"max_candidates"`
	// StatusFilter selects units eligible for assignment.
	StatusFilter string `json:"status_filter"`
	// Hotline is surfaced when no unit can be assigned.
	Hotline string `json:"hotline"`
	// GeocodingEnabled allows free-text addresses. Set from features.geocoding_enabled.
	GeocodingEnabled bool `json:"-"`
	// DefaultCenter is used by callers that need a location and have none.
	DefaultCenter model.Coordinate `json:"default_center"`
	// RankConcurrency caps simultaneous route lookups per ranking.
	RankConcurrency int `json:"rank_concurrency"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 3
	}
	if c.StatusFilter == "" {
		c.StatusFilter = string(model.UnitAvailable)
	}
	if c.Hotline == "" {
		c.Hotline = "108"
	}
	if c.DefaultCenter == (model.Coordinate{}) {
		c.DefaultCenter = model.Coordinate{Latitude: 12.9716, Longitude: 77.5946}
	}
	if c.RankConcurrency <= 0 {
		c.RankConcurrency = 10
	}
}

// Validate checks the values SetDefaults cannot repair. StatusFilter is free
// form since stores may use their own labels.
func (c Config) Validate() error {
	if !c.DefaultCenter.Valid() {
		return fmt.Errorf("%w: default_center %s", model.ErrInvalidCoordinate, c.DefaultCenter)
	}
	return nil
}
