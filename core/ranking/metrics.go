package ranking

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	routeLookups   *prometheus.CounterVec
	rankingLatency prometheus.Histogram
)

func newCollectors() (*prometheus.CounterVec, prometheus.Histogram) {
	lookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_route_lookups_total",
			Help: "Route lookups performed while ranking units, by outcome",
		},
		[]string{"outcome"},
	)
	lat := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ranking_duration_seconds",
			Help:    "End-to-end duration of one ranking call",
			Buckets: prometheus.DefBuckets,
		},
	)
	return lookups, lat
}

func init() {
	routeLookups, rankingLatency = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers ranking metrics on reg, or the default registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(routeLookups, rankingLatency)
}

// ResetMetrics swaps in fresh collectors, registering them on reg when not nil.
func ResetMetrics(reg prometheus.Registerer) {
	routeLookups, rankingLatency = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
