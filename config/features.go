package config

// FeaturesConfig toggles optional behavior. Unset flags take their default.
type FeaturesConfig struct {
	// GeocodingEnabled allows free-text addresses. Default true.
	GeocodingEnabled *bool `json:"geocoding_enabled"`
	// GPSAutodetectEnabled means clients supply a device location; without it
	// rank and landmark lookups fall back to dispatch.default_center. Default false.
	GPSAutodetectEnabled *bool `json:"gps_autodetect_enabled"`
	// LandmarksEnabled exposes the landmark search. Default true.
	LandmarksEnabled *bool `json:"landmarks_enabled"`
}

func flag(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func (f FeaturesConfig) Geocoding() bool     { return flag(f.GeocodingEnabled, true) }
func (f FeaturesConfig) GPSAutodetect() bool { return flag(f.GPSAutodetectEnabled, false) }
func (f FeaturesConfig) Landmarks() bool     { return flag(f.LandmarksEnabled, true) }
