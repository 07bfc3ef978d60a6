package metrics

import (
	"time"
)

// DispatchRecord summarizes one dispatch decision.
type DispatchRecord struct {
	DispatchID    string
	RequestID     string
	UnitID        string
	EmergencyType string
	Severity      string
	EligibleUnits int
	Candidates    int
	// RouteFallback is true when the chosen unit's ETA came from the straight-line estimate.
	RouteFallback bool
	ETAMinutes    float64
	DistanceKm    float64
	Duration      time.Duration
	Time          time.Time
}

// Assigned reports whether a unit was committed.
func (r DispatchRecord) Assigned() bool { return r.UnitID != "" }

// MetricsSink records dispatch decisions.
type MetricsSink interface {
	RecordDispatch(rec DispatchRecord) error
}

// TransitionEvent is a lifecycle move of a request.
type TransitionEvent struct {
	RequestID string
	From      string
	To        string
	Time      time.Time
}

// TransitionRecorder records lifecycle moves.
type TransitionRecorder interface {
	RecordTransition(ev TransitionEvent) error
}

// ProviderCallEvent is one outbound call to geocoding, routing or the landmark index.
type ProviderCallEvent struct {
	Provider string
	Outcome  string
	Latency  time.Duration
	Time     time.Time
}

// ProviderCallRecorder records outbound provider calls.
type ProviderCallRecorder interface {
	RecordProviderCall(ev ProviderCallEvent) error
}

// FleetSnapshot is a point-in-time fleet summary.
type FleetSnapshot struct {
	TotalUnits     int
	AvailableUnits int
	ActiveRequests int
	Time           time.Time
}

// FleetRecorder records fleet snapshots.
type FleetRecorder interface {
	RecordFleetSnapshot(s FleetSnapshot) error
}

// ConflictEvent reports a unit held by more than one active request.
type ConflictEvent struct {
	UnitID   string
	Requests int
	Time     time.Time
}

// ConflictRecorder records assignment conflicts.
type ConflictRecorder interface {
	RecordConflict(ev ConflictEvent) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordDispatch(DispatchRecord) error        { return nil }
func (NopSink) RecordTransition(TransitionEvent) error     { return nil }
func (NopSink) RecordProviderCall(ProviderCallEvent) error { return nil }
func (NopSink) RecordFleetSnapshot(FleetSnapshot) error    { return nil }
func (NopSink) RecordConflict(ConflictEvent) error         { return nil }
