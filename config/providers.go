package config

import (
	"errors"
	"net/url"
	"time"

	"github.com/kilianp07/ambudispatch/infra/cache"
)

// GeocodingConfig configures the Nominatim client and the hint retry.
type GeocodingConfig struct {
	URL         string        `json:"url"`
	UserAgent   string        `json:"user_agent"`
	Email       string        `json:"email"`
	Language    string        `json:"language"`
	CountryHint string        `json:"country_hint"`
	RegionHints []string      `json:"region_hints"`
	Timeout     time.Duration `json:"timeout"`
	Cache       cache.Config  `json:"cache"`
}

func (c *GeocodingConfig) SetDefaults() {
	if c.URL == "" {
		c.URL = "https://nominatim.openstreetmap.org"
	}
	if c.UserAgent == "" {
		c.UserAgent = "ambudispatch/1.0"
	}
	if c.CountryHint == "" {
		c.CountryHint = "India"
	}
	if c.Timeout <= 0 {
		c.Timeout = 4 * time.Second
	}
}

func (c GeocodingConfig) Validate() error { return validURL(c.URL) }

// RoutingConfig configures the OSRM client.
type RoutingConfig struct {
	URL     string        `json:"url"`
	Profile string        `json:"profile"`
	Timeout time.Duration `json:"timeout"`
}

func (c *RoutingConfig) SetDefaults() {
	if c.URL == "" {
		c.URL = "https://router.project-osrm.org"
	}
	if c.Profile == "" {
		c.Profile = "driving"
	}
	if c.Timeout <= 0 {
		c.Timeout = 4 * time.Second
	}
}

func (c RoutingConfig) Validate() error { return validURL(c.URL) }

// LandmarksConfig configures the Overpass client and search defaults.
type LandmarksConfig struct {
	URL             string        `json:"url"`
	Timeout         time.Duration `json:"timeout"`
	DefaultRadiusKm float64       `json:"default_radius_km"`
	DefaultCategory string        `json:"default_category"`
}

func (c *LandmarksConfig) SetDefaults() {
	if c.URL == "" {
		c.URL = "https://overpass-api.de/api/interpreter"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.DefaultRadiusKm <= 0 {
		c.DefaultRadiusKm = 5
	}
	if c.DefaultCategory == "" {
		c.DefaultCategory = "hospital"
	}
}

func (c LandmarksConfig) Validate() error { return validURL(c.URL) }

func validURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("url must be http or https: " + raw)
	}
	return nil
}
