// Package fleet summarizes the unit and request snapshot for dashboards.
package fleet

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/core/routing"
)

// Overview is a point-in-time fleet summary.
type Overview struct {
	TotalUnits      int                         `json:"total_units"`
	UnitsByStatus   map[model.UnitStatus]int    `json:"units_by_status"`
	AvailableUnits  int                         `json:"available_units"`
	UnlocatedUnits  int                         `json:"unlocated_units"`
	TotalRequests   int                         `json:"total_requests"`
	RequestsByState map[model.RequestStatus]int `json:"requests_by_status"`
	ActiveRequests  int                         `json:"active_requests"`
	// UnassignedActive counts active requests waiting for manual dispatch.
	UnassignedActive int `json:"unassigned_active"`
	// ETA statistics over active assigned requests, estimated from the unit's
	// current position with the straight-line heuristic. Nil without data.
	MeanETAMinutes   *float64  `json:"mean_eta_minutes,omitempty"`
	MedianETAMinutes *float64  `json:"median_eta_minutes,omitempty"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Summarize builds an Overview. A unit counts as available when its status is
// Available and no active request holds it.
func Summarize(units []model.Unit, reqs []model.EmergencyRequest, now time.Time) Overview {
	ov := Overview{
		TotalUnits:      len(units),
		UnitsByStatus:   map[model.UnitStatus]int{},
		TotalRequests:   len(reqs),
		RequestsByState: map[model.RequestStatus]int{},
		GeneratedAt:     now,
	}
	byID := make(map[string]model.Unit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}

	held := map[string]bool{}
	var etas []float64
	for _, r := range reqs {
		ov.RequestsByState[r.Status]++
		if !r.Active() {
			continue
		}
		ov.ActiveRequests++
		if r.AssignedUnitID == "" {
			ov.UnassignedActive++
			continue
		}
		held[r.AssignedUnitID] = true
		u, ok := byID[r.AssignedUnitID]
		if ok && u.Location != nil && r.Location.Valid() {
			etas = append(etas, routing.FallbackETA(geo.DistanceKm(*u.Location, r.Location)))
		}
	}

	for _, u := range units {
		ov.UnitsByStatus[u.Status]++
		if u.Location == nil {
			ov.UnlocatedUnits++
		}
		if u.Status == model.UnitAvailable && !held[u.ID] {
			ov.AvailableUnits++
		}
	}

	if len(etas) > 0 {
		sort.Float64s(etas)
		mean := stat.Mean(etas, nil)
		median := stat.Quantile(0.5, stat.Empirical, etas, nil)
		ov.MeanETAMinutes = &mean
		ov.MedianETAMinutes = &median
	}
	return ov
}
