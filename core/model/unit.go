package model

import (
	"strconv"
	"strings"
)

// UnitStatus is the availability of a response unit.
type UnitStatus string

const (
	UnitAvailable    UnitStatus = "Available"
	UnitBusy         UnitStatus = "Busy"
	UnitOutOfService UnitStatus = "OutOfService"
	UnitUnknown      UnitStatus = "Unknown"
)

// ParseUnitStatus maps free-form store values onto the known statuses. Anything
// unrecognized becomes UnitUnknown.
func ParseUnitStatus(s string) UnitStatus {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(norm)
	switch norm {
	case "available", "free", "idle":
		return UnitAvailable
	case "busy", "onduty", "dispatched", "enroute", "assigned":
		return UnitBusy
	case "outofservice", "offline", "maintenance", "oos":
		return UnitOutOfService
	default:
		return UnitUnknown
	}
}

// Unit is a strict snapshot of a response unit read from the record store.
type Unit struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Status   UnitStatus  `json:"status"`
	Driver   string      `json:"driver,omitempty"`
	Location *Coordinate `json:"location,omitempty"`
	// RawStatus keeps the store value so status filters can match exotic labels.
	RawStatus string `json:"-"`
}

// MatchesStatus compares the unit status to filter case-insensitively. An empty
// filter matches everything.
func (u Unit) MatchesStatus(filter string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	if strings.EqualFold(string(u.Status), filter) {
		return true
	}
	return u.RawStatus != "" && strings.EqualFold(strings.TrimSpace(u.RawStatus), filter)
}

// RankedUnit is a unit evaluated against a target. It is never cached.
type RankedUnit struct {
	UnitID                 string       `json:"unit_id"`
	Name                   string       `json:"name"`
	Status                 UnitStatus   `json:"status"`
	Driver                 string       `json:"driver,omitempty"`
	Location               Coordinate   `json:"location"`
	StraightLineDistanceKm float64      `json:"straight_line_distance_km"`
	RouteDistanceKm        *float64     `json:"route_distance_km,omitempty"`
	ETAMinutes             *float64     `json:"eta_minutes,omitempty"`
	RoutePolyline          []Coordinate `json:"route_polyline,omitempty"`
	// RouteFallback is true when ETA comes from the straight-line heuristic.
	RouteFallback bool `json:"route_fallback"`
}

// EffectiveDistanceKm is the ranking key: route distance when known, else straight line.
func (r RankedUnit) EffectiveDistanceKm() float64 {
	if r.RouteDistanceKm != nil {
		return *r.RouteDistanceKm
	}
	return r.StraightLineDistanceKm
}

// CompareIDs orders ids numerically when both are integers and lexically otherwise.
// Numeric ids sort before non-numeric ones.
func CompareIDs(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	}
	return strings.Compare(a, b)
}
