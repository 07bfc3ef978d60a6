package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dispatchLatency  *prometheus.HistogramVec
	dispatchOutcomes *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	conflicts        prometheus.Counter
)

func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Counter) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_execution_latency_seconds",
			Help:    "Latency of a dispatch call from intake to persisted request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"severity"},
	)
	out := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_outcomes_total",
			Help: "Dispatch calls by outcome",
		},
		[]string{"outcome"},
	)
	tr := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_transitions_total",
			Help: "Lifecycle transition attempts by result",
		},
		[]string{"to", "result"},
	)
	conf := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_assignment_conflicts_total",
			Help: "Lost check-then-write races on unit assignment",
		},
	)
	return lat, out, tr, conf
}

func init() {
	dispatchLatency, dispatchOutcomes, transitions, conflicts = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on reg, or the default
// registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(dispatchLatency, dispatchOutcomes, transitions, conflicts)
}

// ResetMetrics reinitializes collectors for tests and registers them on reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	dispatchLatency, dispatchOutcomes, transitions, conflicts = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
