package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/ambudispatch/core/metrics"
)

// PromSink exposes dispatch activity as Prometheus collectors.
type PromSink struct {
	decisions   *prometheus.CounterVec
	eta         *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	calls       *prometheus.CounterVec
	callLatency *prometheus.HistogramVec
	fleet       *prometheus.GaugeVec
	conflicts   prometheus.Counter
}

// NewPromSink registers on the default registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers on reg, reusing collectors that are already
// registered there. A nil reg means the default registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.decisions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_decisions_total",
		Help: "Dispatch decisions by outcome",
	}, []string{"assigned", "emergency_type", "severity", "route_fallback"})); err != nil {
		return nil, err
	}
	if s.eta, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_eta_minutes",
		Help:    "ETA of the assigned unit",
		Buckets: []float64{2, 5, 10, 15, 20, 30, 45, 60, 90},
	}, []string{"severity"})); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "request_transitions_total",
		Help: "Emergency request lifecycle transitions",
	}, []string{"from", "to"})); err != nil {
		return nil, err
	}
	if s.calls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_calls_total",
		Help: "Outbound provider calls by outcome",
	}, []string{"provider", "outcome"})); err != nil {
		return nil, err
	}
	if s.callLatency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provider_call_latency_seconds",
		Help:    "Latency of outbound provider calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})); err != nil {
		return nil, err
	}
	if s.fleet, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleet_units",
		Help: "Units and active requests in the latest fleet snapshot",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if s.conflicts, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assignment_conflicts_total",
		Help: "Units found held by more than one active request",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) RecordDispatch(r coremetrics.DispatchRecord) error {
	s.decisions.WithLabelValues(strconv.FormatBool(r.Assigned()), r.EmergencyType, r.Severity, strconv.FormatBool(r.RouteFallback)).Inc()
	if r.Assigned() {
		s.eta.WithLabelValues(r.Severity).Observe(r.ETAMinutes)
	}
	return nil
}

func (s *PromSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	s.transitions.WithLabelValues(ev.From, ev.To).Inc()
	return nil
}

func (s *PromSink) RecordProviderCall(ev coremetrics.ProviderCallEvent) error {
	s.calls.WithLabelValues(ev.Provider, ev.Outcome).Inc()
	s.callLatency.WithLabelValues(ev.Provider).Observe(ev.Latency.Seconds())
	return nil
}

func (s *PromSink) RecordFleetSnapshot(snap coremetrics.FleetSnapshot) error {
	s.fleet.WithLabelValues("total").Set(float64(snap.TotalUnits))
	s.fleet.WithLabelValues("available").Set(float64(snap.AvailableUnits))
	s.fleet.WithLabelValues("active_requests").Set(float64(snap.ActiveRequests))
	return nil
}

func (s *PromSink) RecordConflict(coremetrics.ConflictEvent) error {
	s.conflicts.Inc()
	return nil
}
