// Package dispatch turns an incoming emergency into an assigned unit and
// drives the request through its lifecycle.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kilianp07/ambudispatch/core/audit"
	"github.com/kilianp07/ambudispatch/core/events"
	"github.com/kilianp07/ambudispatch/core/geocode"
	"github.com/kilianp07/ambudispatch/core/logger"
	"github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/core/monitoring"
	"github.com/kilianp07/ambudispatch/core/ranking"
	"github.com/kilianp07/ambudispatch/core/store"
	"github.com/kilianp07/ambudispatch/internal/eventbus"
)

var tracer = otel.Tracer("ambudispatch/dispatch")

// Manager is the emergency lifecycle manager. It holds no per-request state:
// every call reads a fresh snapshot from the record store.
type Manager struct {
	store    store.Store
	geocoder *geocode.Geocoder
	ranker   *ranking.Engine
	cfg      Config
	logger   logger.Logger

	mu       sync.RWMutex
	metrics  metrics.MetricsSink
	bus      *eventbus.TypedBus[events.Event]
	logStore audit.LogStore

	now   func() time.Time
	newID func() string
}

// NewManager wires a manager. geocoder may be nil, which disables free-text
// addresses regardless of cfg.GeocodingEnabled.
func NewManager(st store.Store, geocoder *geocode.Geocoder, ranker *ranking.Engine, cfg Config, log logger.Logger) (*Manager, error) {
	if st == nil || ranker == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewManager")
	}
	cfg.SetDefaults()
	return &Manager{
		store:    st,
		geocoder: geocoder,
		ranker:   ranker,
		cfg:      cfg,
		logger:   log,
		metrics:  metrics.NopSink{},
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// SetMetricsSink configures where dispatch decisions are recorded.
func (m *Manager) SetMetricsSink(s metrics.MetricsSink) {
	if s == nil {
		return
	}
	m.mu.Lock()
	m.metrics = s
	m.mu.Unlock()
}

// SetEventBus configures the bus lifecycle events are published on.
func (m *Manager) SetEventBus(bus *eventbus.TypedBus[events.Event]) {
	m.mu.Lock()
	m.bus = bus
	m.mu.Unlock()
}

// SetLogStore configures the audit trail.
func (m *Manager) SetLogStore(s audit.LogStore) {
	m.mu.Lock()
	m.logStore = s
	m.mu.Unlock()
}

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// Dispatch resolves the request location, ranks available units, persists the
// request as Pending with the nearest unit (if any) and marks that unit busy.
// No available unit is not an error: the request is stored unassigned and
// Outcome.Escalation carries the hotline.
func (m *Manager) Dispatch(ctx context.Context, req Request) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "dispatch.Dispatch")
	defer span.End()
	start := m.now()
	out := Outcome{DispatchID: m.newID()}
	span.SetAttributes(attribute.String("dispatch.id", out.DispatchID))

	if err := req.Validate(); err != nil {
		dispatchOutcomes.WithLabelValues("invalid").Inc()
		m.countCoverage(ctx, &out)
		return out, err
	}

	target, address, err := m.resolveLocation(ctx, req)
	if err != nil {
		dispatchOutcomes.WithLabelValues("no_location").Inc()
		m.countCoverage(ctx, &out)
		span.RecordError(err)
		span.SetStatus(codes.Error, "location")
		m.appendAudit(ctx, audit.LogRecord{
			Timestamp: m.now(), Kind: audit.KindDispatch, DispatchID: out.DispatchID,
			Address: req.Address, EligibleUnits: out.EligibleUnits, Error: err.Error(),
		})
		return out, err
	}

	units, held, err := m.snapshot(ctx)
	if err != nil {
		dispatchOutcomes.WithLabelValues("store_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "store")
		return out, err
	}
	free := freeUnits(units, held)
	out.EligibleUnits = len(ranking.Filter(free, m.cfg.StatusFilter))
	out.CoverageKnown = true

	cands, err := m.ranker.Rank(ctx, free, ranking.Query{
		Target:       target,
		StatusFilter: m.cfg.StatusFilter,
		MaxResults:   m.cfg.MaxCandidates,
	})
	if err != nil {
		return out, err
	}
	out.Candidates = cands

	er := model.EmergencyRequest{
		PatientName:     strings.TrimSpace(req.PatientName),
		Age:             req.Age,
		EmergencyType:   req.emergencyType(),
		Severity:        req.severity(),
		Phone:           strings.TrimSpace(req.Phone),
		Location:        target,
		ResolvedAddress: address,
		CreatedAt:       m.now().UTC().Truncate(time.Second),
		Status:          model.StatusPending,
	}
	var chosen *model.RankedUnit
	if len(cands) > 0 {
		chosen = &cands[0]
		er.AssignedUnitID = chosen.UnitID
	}

	rec, err := m.store.Create(ctx, store.Requests, store.RequestFields(er))
	if err != nil {
		err = storeErr("create", store.Requests, err)
		m.reportStoreError(err)
		dispatchOutcomes.WithLabelValues("store_error").Inc()
		span.RecordError(err)
		return out, err
	}
	er.ID = store.ParseRequest(rec).ID
	out.Request = &er
	span.SetAttributes(attribute.String("request.id", er.ID), attribute.Int("units.eligible", out.EligibleUnits))

	m.publish(events.RequestCreated{DispatchID: out.DispatchID, Request: er})
	if chosen != nil {
		m.commitUnit(ctx, out.DispatchID, er, *chosen)
		dispatchOutcomes.WithLabelValues("assigned").Inc()
	} else {
		out.Escalation = m.cfg.Hotline
		dispatchOutcomes.WithLabelValues("no_coverage").Inc()
		m.logger.Warnw("no eligible unit, manual escalation required", map[string]any{
			"request_id": er.ID, "location": target.String(), "hotline": m.cfg.Hotline,
		})
		m.publish(events.NoCoverage{RequestID: er.ID, Location: target, Escalation: m.cfg.Hotline})
	}

	elapsed := m.now().Sub(start)
	dispatchLatency.WithLabelValues(string(er.Severity)).Observe(elapsed.Seconds())
	m.recordDispatch(out, er, chosen, elapsed)
	m.appendAudit(ctx, audit.LogRecord{
		Timestamp: m.now(), Kind: audit.KindDispatch, DispatchID: out.DispatchID, RequestID: er.ID,
		Target: &target, Address: address, Candidates: cands, ChosenUnitID: er.AssignedUnitID,
		EligibleUnits: out.EligibleUnits,
	})
	m.logger.Infof("dispatch %s: request %s unit=%q eligible=%d", out.DispatchID, er.ID, er.AssignedUnitID, out.EligibleUnits)
	return out, nil
}

// resolveLocation prefers a geocoded address over device coordinates. When
// the address cannot be resolved but coordinates are valid, the coordinates win.
func (m *Manager) resolveLocation(ctx context.Context, req Request) (model.Coordinate, string, error) {
	addr := strings.TrimSpace(req.Address)
	var coord *model.Coordinate
	if req.Location != nil && req.Location.Valid() {
		coord = req.Location
	}
	geocoding := m.cfg.GeocodingEnabled && m.geocoder != nil

	if addr != "" && geocoding {
		place, err := m.geocoder.Forward(ctx, addr)
		if err == nil {
			return place.Location, place.Address, nil
		}
		if coord == nil {
			return model.Coordinate{}, "", err
		}
		m.logger.Warnw("address not resolved, using device coordinates", map[string]any{
			"address": addr, "location": coord.String(), "error": err.Error(),
		})
	}
	if coord == nil {
		if req.Location != nil {
			return model.Coordinate{}, "", fmt.Errorf("%w: %w", model.ErrNoLocationResolved, model.ErrInvalidCoordinate)
		}
		return model.Coordinate{}, "", model.ErrNoLocationResolved
	}
	switch {
	case geocoding:
		return *coord, m.geocoder.Reverse(ctx, *coord), nil
	case addr != "":
		return *coord, addr, nil
	}
	return *coord, coord.String(), nil
}

// snapshot reads units and the set of unit ids held by active requests.
func (m *Manager) snapshot(ctx context.Context) ([]model.Unit, map[string]string, error) {
	units, err := m.Units(ctx)
	if err != nil {
		return nil, nil, err
	}
	reqs, err := m.Requests(ctx)
	if err != nil {
		return nil, nil, err
	}
	held := make(map[string]string)
	for _, r := range reqs {
		if r.Active() && r.AssignedUnitID != "" {
			held[r.AssignedUnitID] = r.ID
		}
	}
	return units, held, nil
}

func freeUnits(units []model.Unit, held map[string]string) []model.Unit {
	out := make([]model.Unit, 0, len(units))
	for _, u := range units {
		if _, busy := held[u.ID]; busy {
			continue
		}
		out = append(out, u)
	}
	return out
}

// countCoverage fills the coverage fields on a best-effort basis.
func (m *Manager) countCoverage(ctx context.Context, out *Outcome) {
	units, held, err := m.snapshot(ctx)
	if err != nil {
		m.logger.Debugf("coverage count skipped: %v", err)
		return
	}
	out.EligibleUnits = len(ranking.Filter(freeUnits(units, held), m.cfg.StatusFilter))
	out.CoverageKnown = true
}

// commitUnit marks the chosen unit busy and re-reads the requests table to
// detect a concurrent dispatch that picked the same unit. The window between
// the initial snapshot and this re-read is not protected; a detected conflict
// is logged and published, and the latest write stands.
func (m *Manager) commitUnit(ctx context.Context, dispatchID string, er model.EmergencyRequest, unit model.RankedUnit) {
	if _, err := m.store.Update(ctx, store.Units, unit.UnitID, store.UnitStatusFields(model.UnitBusy)); err != nil {
		err = storeErr("update", store.Units, err)
		m.reportStoreError(err)
		m.logger.Warnw("unit status not updated", map[string]any{"unit_id": unit.UnitID, "request_id": er.ID, "error": err.Error()})
	}
	m.publish(events.UnitAssigned{DispatchID: dispatchID, RequestID: er.ID, Unit: unit})

	reqs, err := m.Requests(ctx)
	if err != nil {
		m.logger.Debugf("assignment re-check skipped: %v", err)
		return
	}
	var holders []string
	for _, r := range reqs {
		if r.Active() && r.AssignedUnitID == unit.UnitID {
			holders = append(holders, r.ID)
		}
	}
	if len(holders) > 1 {
		conflicts.Inc()
		m.logger.Warnw("assignment conflict: unit held by several active requests", map[string]any{
			"unit_id": unit.UnitID, "request_ids": holders, "dispatch_id": dispatchID,
		})
		m.publish(events.AssignmentConflict{UnitID: unit.UnitID, RequestIDs: holders})
	}
}

// UpdateStatus moves a request along Pending -> In Progress -> Completed (or
// straight to Completed). Re-applying the current status is a no-op.
func (m *Manager) UpdateStatus(ctx context.Context, id string, target model.RequestStatus) (model.EmergencyRequest, error) {
	ctx, span := tracer.Start(ctx, "dispatch.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", id), attribute.String("status.target", string(target)))

	reqs, err := m.Requests(ctx)
	if err != nil {
		return model.EmergencyRequest{}, err
	}
	var cur *model.EmergencyRequest
	for i := range reqs {
		if reqs[i].ID == id {
			cur = &reqs[i]
			break
		}
	}
	if cur == nil {
		transitions.WithLabelValues(string(target), "unknown").Inc()
		return model.EmergencyRequest{}, fmt.Errorf("%w: %s", model.ErrUnknownRequest, id)
	}
	if cur.Status == target {
		transitions.WithLabelValues(string(target), "noop").Inc()
		return *cur, nil
	}
	if err := checkTransition(ctx, cur.Status, target); err != nil {
		transitions.WithLabelValues(string(target), "invalid").Inc()
		return *cur, err
	}

	rec, err := m.store.Update(ctx, store.Requests, id, store.Record{store.FieldStatus: string(target)})
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return model.EmergencyRequest{}, fmt.Errorf("%w: %s", model.ErrUnknownRequest, id)
		}
		err = storeErr("update", store.Requests, err)
		m.reportStoreError(err)
		return *cur, err
	}
	updated := store.ParseRequest(rec)
	updated.Status = target
	from := cur.Status
	transitions.WithLabelValues(string(target), "ok").Inc()

	if target == model.StatusCompleted && updated.AssignedUnitID != "" {
		m.releaseUnit(ctx, updated, reqs)
	}
	m.publish(events.StatusChanged{RequestID: id, From: from, To: target, UnitID: updated.AssignedUnitID, At: m.now()})
	m.appendAudit(ctx, audit.LogRecord{
		Timestamp: m.now(), Kind: audit.KindTransition, RequestID: id,
		ChosenUnitID: updated.AssignedUnitID, From: string(from), To: string(target),
	})
	m.logger.Infof("request %s: %s -> %s", id, from, target)
	return updated, nil
}

// releaseUnit returns the unit to Available unless another active request
// still holds it.
func (m *Manager) releaseUnit(ctx context.Context, done model.EmergencyRequest, reqs []model.EmergencyRequest) {
	for _, r := range reqs {
		if r.ID != done.ID && r.Active() && r.AssignedUnitID == done.AssignedUnitID {
			m.logger.Debugf("unit %s still held by request %s", done.AssignedUnitID, r.ID)
			return
		}
	}
	if _, err := m.store.Update(ctx, store.Units, done.AssignedUnitID, store.UnitStatusFields(model.UnitAvailable)); err != nil {
		err = storeErr("update", store.Units, err)
		m.reportStoreError(err)
		m.logger.Warnw("unit not released", map[string]any{"unit_id": done.AssignedUnitID, "error": err.Error()})
	}
}

// RankUnits ranks the current fleet against target. max <= 0 means unlimited.
func (m *Manager) RankUnits(ctx context.Context, target model.Coordinate, statusFilter string, max int) ([]model.RankedUnit, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidCoordinate, target)
	}
	units, err := m.Units(ctx)
	if err != nil {
		return nil, err
	}
	return m.ranker.Rank(ctx, units, ranking.Query{Target: target, StatusFilter: statusFilter, MaxResults: max})
}

// Units returns the parsed unit snapshot.
func (m *Manager) Units(ctx context.Context) ([]model.Unit, error) {
	rows, err := m.store.Fetch(ctx, store.Units)
	if err != nil {
		err = storeErr("fetch", store.Units, err)
		m.reportStoreError(err)
		return nil, err
	}
	units := make([]model.Unit, 0, len(rows))
	for _, r := range rows {
		units = append(units, store.ParseUnit(r))
	}
	return units, nil
}

// Requests returns the parsed request snapshot.
func (m *Manager) Requests(ctx context.Context) ([]model.EmergencyRequest, error) {
	rows, err := m.store.Fetch(ctx, store.Requests)
	if err != nil {
		err = storeErr("fetch", store.Requests, err)
		m.reportStoreError(err)
		return nil, err
	}
	reqs := make([]model.EmergencyRequest, 0, len(rows))
	for _, r := range rows {
		er := store.ParseRequest(r)
		if er.Status == model.StatusUnknown {
			m.logger.Warnw("request has unrecognised status", map[string]any{"request_id": er.ID, "status": er.RawStatus})
		}
		reqs = append(reqs, er)
	}
	return reqs, nil
}

// Close closes the bus and the audit store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bus != nil {
		m.bus.Close()
	}
	if m.logStore != nil {
		return m.logStore.Close()
	}
	return nil
}

func (m *Manager) publish(ev events.Event) {
	m.mu.RLock()
	bus := m.bus
	m.mu.RUnlock()
	if bus != nil {
		bus.Publish(ev)
	}
}

func (m *Manager) appendAudit(ctx context.Context, rec audit.LogRecord) {
	m.mu.RLock()
	ls := m.logStore
	m.mu.RUnlock()
	if ls == nil {
		return
	}
	if err := ls.Append(ctx, rec); err != nil {
		m.logger.Errorf("audit append: %v", err)
	}
}

func (m *Manager) recordDispatch(out Outcome, er model.EmergencyRequest, chosen *model.RankedUnit, elapsed time.Duration) {
	rec := metrics.DispatchRecord{
		DispatchID:    out.DispatchID,
		RequestID:     er.ID,
		EmergencyType: er.EmergencyType,
		Severity:      string(er.Severity),
		EligibleUnits: out.EligibleUnits,
		Candidates:    len(out.Candidates),
		Duration:      elapsed,
		Time:          m.now(),
	}
	if chosen != nil {
		rec.UnitID = chosen.UnitID
		rec.RouteFallback = chosen.RouteFallback
		rec.DistanceKm = chosen.EffectiveDistanceKm()
		if chosen.ETAMinutes != nil {
			rec.ETAMinutes = *chosen.ETAMinutes
		}
	}
	m.mu.RLock()
	sink := m.metrics
	m.mu.RUnlock()
	if err := sink.RecordDispatch(rec); err != nil {
		m.logger.Errorf("metrics error: %v", err)
	}
}

func (m *Manager) reportStoreError(err error) {
	monitoring.CaptureException(err, map[string]string{"component": "dispatch"})
}

// storeErr normalizes store failures into *model.StoreError.
func storeErr(op string, t store.Table, err error) error {
	var se *model.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &model.StoreError{Op: op, Table: string(t), Err: err}
}
