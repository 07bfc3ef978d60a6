// Package overview serves the fleet dashboard summary.
package overview

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kilianp07/ambudispatch/api/respond"
	"github.com/kilianp07/ambudispatch/core/fleet"
	"github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/kilianp07/ambudispatch/core/model"
)

// Source reads the current snapshot.
type Source interface {
	Units(ctx context.Context) ([]model.Unit, error)
	Requests(ctx context.Context) ([]model.EmergencyRequest, error)
}

func Register(r *mux.Router, src Source, rec metrics.FleetRecorder) {
	r.Handle("/api/overview", NewHandler(src, rec)).Methods(http.MethodGet)
}

// NewHandler summarizes the fleet and, when rec is set, records the snapshot
// so fleet gauges follow dashboard polling.
func NewHandler(src Source, rec metrics.FleetRecorder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		units, err := src.Units(r.Context())
		if err != nil {
			respond.Error(w, err)
			return
		}
		reqs, err := src.Requests(r.Context())
		if err != nil {
			respond.Error(w, err)
			return
		}
		ov := fleet.Summarize(units, reqs, time.Now().UTC())
		if rec != nil {
			_ = rec.RecordFleetSnapshot(metrics.FleetSnapshot{
				TotalUnits:     ov.TotalUnits,
				AvailableUnits: ov.AvailableUnits,
				ActiveRequests: ov.ActiveRequests,
				Time:           ov.GeneratedAt,
			})
		}
		respond.JSON(w, http.StatusOK, ov)
	})
}
