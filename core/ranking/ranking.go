// Package ranking orders response units by how quickly they can reach a target.
package ranking

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/logger"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/core/routing"
)

// DefaultConcurrency caps simultaneous route lookups.
const DefaultConcurrency = 10

// RouteFinder is satisfied by *routing.Router.
type RouteFinder interface {
	Route(ctx context.Context, from, to model.Coordinate) (routing.Route, error)
}

// Query describes one ranking call.
type Query struct {
	Target model.Coordinate
	// StatusFilter keeps only units whose status matches, case-insensitively.
	// Empty keeps every unit.
	StatusFilter string
	// MaxResults truncates the sorted list. Zero or negative means unlimited.
	MaxResults int
}

// Engine ranks units. The zero value is not usable; use New.
type Engine struct {
	router      RouteFinder
	concurrency int
	log         logger.Logger
}

// New returns an Engine. A nil router makes every candidate use the straight-line fallback.
func New(router RouteFinder, concurrency int, log logger.Logger) *Engine {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Engine{router: router, concurrency: concurrency, log: log}
}

// Filter drops units without a usable location and, when statusFilter is set,
// units whose status does not match it.
func Filter(units []model.Unit, statusFilter string) []model.Unit {
	out := make([]model.Unit, 0, len(units))
	for _, u := range units {
		if u.Location == nil || !u.Location.Valid() {
			continue
		}
		if !u.MatchesStatus(statusFilter) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// Rank evaluates every eligible unit against q.Target and returns them ordered
// by effective distance, ties broken by id. Route failures degrade a single
// candidate to the straight-line estimate. The only error is ctx's, when the
// caller gave up before the batch finished.
func (e *Engine) Rank(ctx context.Context, units []model.Unit, q Query) ([]model.RankedUnit, error) {
	ctx, span := otel.Tracer("ambudispatch/ranking").Start(ctx, "ranking.Rank")
	defer span.End()
	start := time.Now()
	defer func() { rankingLatency.Observe(time.Since(start).Seconds()) }()

	eligible := Filter(units, q.StatusFilter)
	span.SetAttributes(
		attribute.Int("units.total", len(units)),
		attribute.Int("units.eligible", len(eligible)),
	)
	results := make([]model.RankedUnit, len(eligible))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, u := range eligible {
		g.Go(func() error {
			results[i] = e.evaluate(ctx, u, q.Target)
			return nil
		})
	}
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	Sort(results)
	if q.MaxResults > 0 && len(results) > q.MaxResults {
		results = results[:q.MaxResults]
	}
	return results, nil
}

func (e *Engine) evaluate(ctx context.Context, u model.Unit, target model.Coordinate) model.RankedUnit {
	from := *u.Location
	straight := geo.DistanceKm(from, target)
	ru := model.RankedUnit{
		UnitID:                 u.ID,
		Name:                   u.Name,
		Status:                 u.Status,
		Driver:                 u.Driver,
		Location:               from,
		StraightLineDistanceKm: straight,
	}
	var (
		rt  routing.Route
		err = model.ErrRouteUnavailable
	)
	if e.router != nil {
		rt, err = e.router.Route(ctx, from, target)
	}
	if err != nil {
		if !errors.Is(err, model.ErrRouteUnavailable) && e.log != nil {
			e.log.Warnf("ranking: unit %s route lookup: %v", u.ID, err)
		}
		routeLookups.WithLabelValues("fallback").Inc()
		eta := routing.FallbackETA(straight)
		ru.ETAMinutes = &eta
		ru.RouteFallback = true
		return ru
	}
	routeLookups.WithLabelValues("ok").Inc()
	dist, eta := rt.DistanceKm, rt.ETAMinutes
	ru.RouteDistanceKm = &dist
	ru.ETAMinutes = &eta
	ru.RoutePolyline = rt.Polyline
	return ru
}

// Sort orders ranked units by effective distance ascending, then by unit id.
func Sort(units []model.RankedUnit) {
	sort.SliceStable(units, func(i, j int) bool {
		di, dj := units[i].EffectiveDistanceKm(), units[j].EffectiveDistanceKm()
		if di != dj {
			return di < dj
		}
		return model.CompareIDs(units[i].UnitID, units[j].UnitID) < 0
	})
}
