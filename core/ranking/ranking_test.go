package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/core/routing"
	"github.com/kilianp07/ambudispatch/infra/logger"
)

type routeFunc func(ctx context.Context, from, to model.Coordinate) (routing.Route, error)

func (f routeFunc) Route(ctx context.Context, from, to model.Coordinate) (routing.Route, error) {
	return f(ctx, from, to)
}

func failingRouter() routeFunc {
	return func(context.Context, model.Coordinate, model.Coordinate) (routing.Route, error) {
		return routing.Route{}, model.ErrRouteUnavailable
	}
}

// straightRouter answers with the straight-line distance at 40 km/h.
func straightRouter() routeFunc {
	return func(_ context.Context, from, to model.Coordinate) (routing.Route, error) {
		d := geo.DistanceKm(from, to)
		return routing.Route{DistanceKm: d, ETAMinutes: d * 1.5, Polyline: []model.Coordinate{from, to}}, nil
	}
}

func loc(lat, lon float64) *model.Coordinate { return &model.Coordinate{Latitude: lat, Longitude: lon} }

func scenarioUnits() []model.Unit {
	return []model.Unit{
		{ID: "1", Name: "KA-01", Status: model.UnitAvailable, Location: loc(12.97, 77.59)},
		{ID: "2", Name: "KA-02", Status: model.UnitAvailable, Location: loc(12.90, 77.60)},
	}
}

var scenarioTarget = model.Coordinate{Latitude: 12.975, Longitude: 77.594}

func TestRankClosestUnitFirst(t *testing.T) {
	ResetMetrics(nil)
	e := New(straightRouter(), 0, logger.NopLogger{})
	got, err := e.Rank(context.Background(), scenarioUnits(), Query{Target: scenarioTarget, StatusFilter: "Available", MaxResults: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].UnitID)
	require.NotNil(t, got[0].RouteDistanceKm)
	assert.False(t, got[0].RouteFallback)
	assert.Len(t, got[0].RoutePolyline, 2)
}

func TestRankAllRoutesFailFallsBackToStraightLine(t *testing.T) {
	ResetMetrics(nil)
	e := New(failingRouter(), 0, logger.NopLogger{})
	got, err := e.Rank(context.Background(), scenarioUnits(), Query{Target: scenarioTarget})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].UnitID)
	assert.Equal(t, "2", got[1].UnitID)
	for _, r := range got {
		assert.Nil(t, r.RouteDistanceKm)
		require.NotNil(t, r.ETAMinutes)
		assert.InDelta(t, r.StraightLineDistanceKm*3, *r.ETAMinutes, 1e-9)
		assert.True(t, r.RouteFallback)
	}
}

func TestRankFiltersLocationAndStatus(t *testing.T) {
	ResetMetrics(nil)
	units := []model.Unit{
		{ID: "1", Status: model.UnitAvailable, RawStatus: "available", Location: loc(12.97, 77.59)},
		{ID: "2", Status: model.UnitBusy, Location: loc(12.97, 77.59)},
		{ID: "3", Status: model.UnitAvailable},
		{ID: "4", Status: model.UnitAvailable, Location: loc(99, 77.59)},
	}
	e := New(failingRouter(), 2, logger.NopLogger{})
	got, err := e.Rank(context.Background(), units, Query{Target: scenarioTarget, StatusFilter: "AVAILABLE"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].UnitID)

	all, err := e.Rank(context.Background(), units, Query{Target: scenarioTarget})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRankEmptyIsNotAnError(t *testing.T) {
	e := New(failingRouter(), 0, logger.NopLogger{})
	got, err := e.Rank(context.Background(), nil, Query{Target: scenarioTarget, StatusFilter: "Available", MaxResults: 3})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRankTieBrokenByID(t *testing.T) {
	units := []model.Unit{
		{ID: "10", Status: model.UnitAvailable, Location: loc(12.97, 77.59)},
		{ID: "2", Status: model.UnitAvailable, Location: loc(12.97, 77.59)},
		{ID: "b", Status: model.UnitAvailable, Location: loc(12.97, 77.59)},
	}
	e := New(failingRouter(), 0, logger.NopLogger{})
	got, err := e.Rank(context.Background(), units, Query{Target: scenarioTarget})
	require.NoError(t, err)
	ids := []string{got[0].UnitID, got[1].UnitID, got[2].UnitID}
	assert.Equal(t, []string{"2", "10", "b"}, ids)
}

func TestRankRouteDistanceOverridesStraightLine(t *testing.T) {
	// Unit 1 is closer in a straight line but the road detour is long.
	router := routeFunc(func(_ context.Context, from, to model.Coordinate) (routing.Route, error) {
		if from == *loc(12.97, 77.59) {
			return routing.Route{DistanceKm: 50, ETAMinutes: 60}, nil
		}
		return routing.Route{}, errors.New("no route")
	})
	e := New(router, 0, logger.NopLogger{})
	got, err := e.Rank(context.Background(), scenarioUnits(), Query{Target: scenarioTarget})
	require.NoError(t, err)
	assert.Equal(t, "2", got[0].UnitID)
	assert.Equal(t, "1", got[1].UnitID)
}

func TestRankMinKMSortedProperty(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	e := New(routeFunc(func(_ context.Context, from, to model.Coordinate) (routing.Route, error) {
		if from.Latitude > 12.95 {
			return routing.Route{}, model.ErrRouteUnavailable
		}
		d := geo.DistanceKm(from, to) * 1.3
		return routing.Route{DistanceKm: d, ETAMinutes: d * 2}, nil
	}), 4, logger.NopLogger{})

	for iter := 0; iter < 50; iter++ {
		var units []model.Unit
		k := 0
		n := r.Intn(12)
		for i := 0; i < n; i++ {
			u := model.Unit{ID: fmt.Sprint(i), Status: model.UnitBusy, Location: loc(12.9+r.Float64()*0.1, 77.55+r.Float64()*0.1)}
			if r.Intn(3) > 0 {
				u.Status = model.UnitAvailable
				k++
			}
			units = append(units, u)
		}
		m := r.Intn(6)
		got, err := e.Rank(context.Background(), units, Query{Target: scenarioTarget, StatusFilter: "Available", MaxResults: m})
		require.NoError(t, err)
		want := k
		if m > 0 && m < k {
			want = m
		}
		require.Len(t, got, want)
		for i := 1; i < len(got); i++ {
			if got[i-1].EffectiveDistanceKm() > got[i].EffectiveDistanceKm() {
				t.Fatalf("iteration %d: not sorted at %d", iter, i)
			}
		}
		again, err := e.Rank(context.Background(), units, Query{Target: scenarioTarget, StatusFilter: "Available", MaxResults: m})
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}
}

func TestRankBoundedConcurrency(t *testing.T) {
	var inflight, peak int32
	router := routeFunc(func(context.Context, model.Coordinate, model.Coordinate) (routing.Route, error) {
		n := atomic.AddInt32(&inflight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return routing.Route{DistanceKm: 1, ETAMinutes: 1}, nil
	})
	var units []model.Unit
	for i := 0; i < 30; i++ {
		units = append(units, model.Unit{ID: fmt.Sprint(i), Status: model.UnitAvailable, Location: loc(12.9, 77.6)})
	}
	e := New(router, 3, logger.NopLogger{})
	got, err := e.Rank(context.Background(), units, Query{Target: scenarioTarget})
	require.NoError(t, err)
	assert.Len(t, got, 30)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestRankCancelledCaller(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	router := routeFunc(func(context.Context, model.Coordinate, model.Coordinate) (routing.Route, error) {
		<-block
		return routing.Route{}, model.ErrRouteUnavailable
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(router, 0, logger.NopLogger{}).Rank(ctx, scenarioUnits(), Query{Target: scenarioTarget})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSortNaNFree(t *testing.T) {
	d := 1.0
	units := []model.RankedUnit{{UnitID: "2", StraightLineDistanceKm: 3}, {UnitID: "1", StraightLineDistanceKm: 9, RouteDistanceKm: &d}}
	Sort(units)
	if units[0].UnitID != "1" || math.IsNaN(units[0].EffectiveDistanceKm()) {
		t.Fatalf("unexpected order %+v", units)
	}
}
