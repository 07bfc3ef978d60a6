package metrics

import "github.com/kilianp07/ambudispatch/core/factory"

// Config lists the sinks to build.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusPath is where the HTTP service mounts the scrape handler.
	PrometheusPath string `json:"prometheus_path"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.PrometheusPath == "" {
		c.PrometheusPath = "/metrics"
	}
}
