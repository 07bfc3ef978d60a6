package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/kilianp07/ambudispatch/infra/logger"
)

// InfluxSink writes dispatch activity to InfluxDB v2.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given endpoint. A trailing
// /api/v2/write on url is tolerated.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings InfluxDB and returns a NopSink when the
// health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) RecordDispatch(r coremetrics.DispatchRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_decision").
		AddTag("dispatch_id", r.DispatchID).
		AddTag("assigned", strconv.FormatBool(r.Assigned())).
		AddTag("severity", r.Severity).
		AddTag("emergency_type", r.EmergencyType).
		AddField("request_id", r.RequestID).
		AddField("unit_id", r.UnitID).
		AddField("eligible_units", r.EligibleUnits).
		AddField("candidates", r.Candidates).
		AddField("route_fallback", r.RouteFallback).
		AddField("eta_minutes", round3(r.ETAMinutes)).
		AddField("distance_km", round3(r.DistanceKm)).
		AddField("duration_ms", r.Duration.Milliseconds()).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("request_transition").
		AddTag("from", ev.From).
		AddTag("to", ev.To).
		AddField("request_id", ev.RequestID).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordProviderCall(ev coremetrics.ProviderCallEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("provider_call").
		AddTag("provider", ev.Provider).
		AddTag("outcome", ev.Outcome).
		AddField("latency_ms", round3(float64(ev.Latency)/float64(time.Millisecond))).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordFleetSnapshot(snap coremetrics.FleetSnapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("fleet_snapshot").
		AddField("total_units", snap.TotalUnits).
		AddField("available_units", snap.AvailableUnits).
		AddField("active_requests", snap.ActiveRequests).
		SetTime(snap.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
