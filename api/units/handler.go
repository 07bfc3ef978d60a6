// Package units exposes the fleet snapshot and unit ranking over HTTP.
package units

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kilianp07/ambudispatch/api/respond"
	"github.com/kilianp07/ambudispatch/core/model"
)

// Fleet lists and ranks units.
type Fleet interface {
	Units(ctx context.Context) ([]model.Unit, error)
	RankUnits(ctx context.Context, target model.Coordinate, statusFilter string, max int) ([]model.RankedUnit, error)
}

// RankDefaults apply when the query omits a parameter. A nil Center makes
// lat and lon mandatory.
type RankDefaults struct {
	Center       *model.Coordinate
	StatusFilter string
	MaxResults   int
}

func Register(r *mux.Router, f Fleet, d RankDefaults) {
	r.Handle("/api/units", NewListHandler(f)).Methods(http.MethodGet)
	r.Handle("/api/units/rank", NewRankHandler(f, d)).Methods(http.MethodGet)
}

// NewListHandler returns the parsed store snapshot, filtered by ?status=.
func NewListHandler(f Fleet) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		units, err := f.Units(r.Context())
		if err != nil {
			respond.Error(w, err)
			return
		}
		out := []model.Unit{}
		status := r.URL.Query().Get("status")
		for _, u := range units {
			if u.MatchesStatus(status) {
				out = append(out, u)
			}
		}
		respond.JSON(w, http.StatusOK, out)
	})
}

// NewRankHandler ranks units against ?lat&lon. ?status= overrides the default
// filter and ?status=all disables it.
func NewRankHandler(f Fleet, d RankDefaults) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target, err := respond.Location(r, d.Center)
		if err != nil {
			respond.Error(w, err)
			return
		}
		max, err := respond.Int(r, "max", d.MaxResults)
		if err != nil {
			respond.Error(w, err)
			return
		}
		status := d.StatusFilter
		if s := r.URL.Query().Get("status"); s != "" {
			status = s
		}
		if status == "all" {
			status = ""
		}
		ranked, err := f.RankUnits(r.Context(), target, status, max)
		if err != nil {
			respond.Error(w, err)
			return
		}
		if ranked == nil {
			ranked = []model.RankedUnit{}
		}
		respond.JSON(w, http.StatusOK, ranked)
	})
}
