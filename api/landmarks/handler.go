// Package landmarks exposes the point-of-interest search over HTTP.
package landmarks

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kilianp07/ambudispatch/api/respond"
	corelandmarks "github.com/kilianp07/ambudispatch/core/landmarks"
	"github.com/kilianp07/ambudispatch/core/model"
)

type Searcher interface {
	Search(ctx context.Context, q corelandmarks.Query) ([]model.Landmark, error)
}

// Defaults apply when the query omits a parameter. A nil Center makes lat and
// lon mandatory.
type Defaults struct {
	Center   *model.Coordinate
	RadiusKm float64
	Category string
}

func Register(r *mux.Router, s Searcher, d Defaults) {
	r.Handle("/api/landmarks", NewSearchHandler(s, d)).Methods(http.MethodGet)
}

// NewSearchHandler serves GET /api/landmarks?lat&lon&radius_km&category&max.
func NewSearchHandler(s Searcher, d Defaults) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		center, err := respond.Location(r, d.Center)
		if err != nil {
			respond.Error(w, err)
			return
		}
		radius, err := respond.Float(r, "radius_km", d.RadiusKm)
		if err != nil {
			respond.Error(w, err)
			return
		}
		max, err := respond.Int(r, "max", 0)
		if err != nil {
			respond.Error(w, err)
			return
		}
		category := r.URL.Query().Get("category")
		if category == "" {
			category = d.Category
		}
		found, err := s.Search(r.Context(), corelandmarks.Query{Center: center, RadiusKm: radius, Category: category, MaxResults: max})
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, found)
	})
}
