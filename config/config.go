package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/ambudispatch/core/dispatch"
	"github.com/kilianp07/ambudispatch/core/factory"
	"github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/kilianp07/ambudispatch/infra/mqtt"
	"github.com/kilianp07/ambudispatch/infra/tracing"
)

type Config struct {
	Store     factory.ModuleConfig `json:"store"`
	Geocoding GeocodingConfig      `json:"geocoding"`
	Routing   RoutingConfig        `json:"routing"`
	Landmarks LandmarksConfig      `json:"landmarks"`
	Dispatch  dispatch.Config      `json:"dispatch"`
	Features  FeaturesConfig       `json:"features"`
	Metrics   metrics.Config       `json:"metrics"`
	Audit     AuditConfig          `json:"audit"`
	MQTT      mqtt.Config          `json:"mqtt"`
	Sentry    SentryConfig         `json:"sentry"`
	Tracing   tracing.Config       `json:"tracing"`
	HTTP      HTTPConfig           `json:"http"`
}

// EnvPrefix marks environment overrides. K_GEOCODING__COUNTRY_HINT sets
// geocoding.country_hint.
const EnvPrefix = "K_"

// Load reads path (YAML or JSON) when given, applies environment overrides,
// fills defaults and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration without reading any file.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

func (c *Config) SetDefaults() {
	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}
	c.Geocoding.SetDefaults()
	c.Routing.SetDefaults()
	c.Landmarks.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Dispatch.GeocodingEnabled = c.Features.Geocoding()
	c.Metrics.SetDefaults()
	c.Audit.SetDefaults()
	c.HTTP.SetDefaults()
}

// Validate reports every section error at once.
func (c Config) Validate() error {
	return errors.Join(
		section("geocoding", c.Geocoding.Validate()),
		section("routing", c.Routing.Validate()),
		section("landmarks", c.Landmarks.Validate()),
		section("dispatch", c.Dispatch.Validate()),
		section("audit", c.Audit.Validate()),
		section("sentry", c.Sentry.Validate()),
		section("http", c.HTTP.Validate()),
	)
}

func section(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}
