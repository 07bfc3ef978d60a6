package metrics_test

import (
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	metrics "github.com/kilianp07/ambudispatch/core/metrics"
	_ "github.com/kilianp07/ambudispatch/infra/metrics"
)

func TestMetricsSectionFromYAML(t *testing.T) {
	data := `sinks:
  - type: nop
  - type: NOP
`
	var cfg metrics.Config
	if err := yaml.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	cfg.SetDefaults()
	if cfg.PrometheusPath != "/metrics" {
		t.Fatalf("default path not set: %q", cfg.PrometheusPath)
	}
	s, err := metrics.NewMetricsSink(cfg.Sinks)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m, ok := s.(*metrics.MultiSink); !ok || len(m.Sinks) != 2 {
		t.Fatalf("expected MultiSink of 2, got %T", s)
	}
}

func TestMetricsSectionUnknownSink(t *testing.T) {
	data := `{"prometheus_path":"/prom","sinks":[{"type":"nop"},{"type":"statsd"}]}`
	var cfg metrics.Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	cfg.SetDefaults()
	if cfg.PrometheusPath != "/prom" {
		t.Fatalf("path overwritten: %q", cfg.PrometheusPath)
	}
	_, err := metrics.NewMetricsSink(cfg.Sinks)
	if err == nil || !strings.Contains(err.Error(), "metrics sink 1 (statsd)") {
		t.Fatalf("expected indexed error, got %v", err)
	}
	for _, name := range []string{"influx", "nop", "prometheus"} {
		if !contains(metrics.SinkTypes(), name) {
			t.Fatalf("sink %s not registered", name)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
