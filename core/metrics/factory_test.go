package metrics_test

import (
	"testing"
	"time"

	"github.com/kilianp07/ambudispatch/core/factory"
	metrics "github.com/kilianp07/ambudispatch/core/metrics"
)

type callCounter struct {
	metrics.NopSink
	calls map[string]int
}

func (c *callCounter) RecordProviderCall(ev metrics.ProviderCallEvent) error {
	c.calls[ev.Provider]++
	return nil
}

func newCounter(map[string]any) (metrics.MetricsSink, error) {
	counter.calls = map[string]int{}
	return counter, nil
}

var counter = &callCounter{}

func init() {
	if err := metrics.RegisterMetricsSink("test-counter", newCounter); err != nil {
		panic(err)
	}
}

func TestRegisteredSinkReceivesProviderCalls(t *testing.T) {
	if err := metrics.RegisterMetricsSink("TEST-COUNTER", newCounter); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}

	s, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "test-counter"}, {Type: "nop"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rec, ok := s.(metrics.ProviderCallRecorder)
	if !ok {
		t.Fatalf("%T does not record provider calls", s)
	}
	for _, p := range []string{"nominatim", "osrm", "osrm"} {
		if err := rec.RecordProviderCall(metrics.ProviderCallEvent{Provider: p, Outcome: "ok", Latency: time.Millisecond}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if counter.calls["osrm"] != 2 || counter.calls["nominatim"] != 1 {
		t.Fatalf("unexpected counts %v", counter.calls)
	}
}

func TestNewMetricsSinkEmpty(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("empty: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}
}
