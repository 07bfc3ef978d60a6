// Package metrics defines the sinks dispatch decisions are recorded to.
// Sinks implement MetricsSink and may opt into the narrower recorder
// interfaces (transitions, provider calls, fleet snapshots, conflicts).
// Backends register themselves through RegisterMetricsSink; NewMetricsSink
// combines several into a MultiSink.
package metrics
