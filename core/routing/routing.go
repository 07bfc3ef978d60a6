// Package routing wraps a road routing provider.
package routing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/ambudispatch/core/model"
)

// FallbackMinutesPerKm converts straight-line kilometres into an ETA when no
// route is known (20 km/h effective urban speed).
const FallbackMinutesPerKm = 3.0

// DefaultTimeout applies when the router is built without one.
const DefaultTimeout = 4 * time.Second

// Route is a road route between two coordinates.
type Route struct {
	Polyline   []model.Coordinate
	DistanceKm float64
	ETAMinutes float64
}

// Provider computes a road route from one coordinate to another.
type Provider interface {
	Route(ctx context.Context, from, to model.Coordinate) (Route, error)
}

// Router normalizes provider failures into model.ErrRouteUnavailable.
type Router struct {
	provider Provider
	timeout  time.Duration
}

// NewRouter returns a Router with the given per-call timeout.
func NewRouter(p Provider, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Router{provider: p, timeout: timeout}
}

// Route returns the provider route or an error wrapping model.ErrRouteUnavailable.
func (r *Router) Route(ctx context.Context, from, to model.Coordinate) (Route, error) {
	if r == nil || r.provider == nil {
		return Route{}, fmt.Errorf("%w: no provider", model.ErrRouteUnavailable)
	}
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	rt, err := r.provider.Route(cctx, from, to)
	if err != nil {
		return Route{}, fmt.Errorf("%w: %v", model.ErrRouteUnavailable, err)
	}
	if !finite(rt.DistanceKm) || !finite(rt.ETAMinutes) || rt.DistanceKm < 0 || rt.ETAMinutes < 0 {
		return Route{}, fmt.Errorf("%w: malformed route %.3fkm %.3fmin", model.ErrRouteUnavailable, rt.DistanceKm, rt.ETAMinutes)
	}
	return rt, nil
}

// FallbackETA estimates minutes from a straight-line distance.
func FallbackETA(distanceKm float64) float64 { return distanceKm * FallbackMinutesPerKm }

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
