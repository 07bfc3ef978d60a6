// Package api assembles the HTTP surface of the dispatch service.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/ambudispatch/api/audit"
	"github.com/kilianp07/ambudispatch/api/landmarks"
	"github.com/kilianp07/ambudispatch/api/overview"
	"github.com/kilianp07/ambudispatch/api/requests"
	"github.com/kilianp07/ambudispatch/api/respond"
	"github.com/kilianp07/ambudispatch/api/units"
	coreaudit "github.com/kilianp07/ambudispatch/core/audit"
	"github.com/kilianp07/ambudispatch/core/logger"
	"github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/kilianp07/ambudispatch/core/monitoring"
	infralogger "github.com/kilianp07/ambudispatch/infra/logger"
)

// Dispatcher is everything the request, unit and overview endpoints need.
type Dispatcher interface {
	requests.Dispatcher
	units.Fleet
}

// Deps are the components behind the routes. Nil optional components leave
// their routes unmounted.
type Deps struct {
	Dispatcher Dispatcher
	Landmarks  landmarks.Searcher
	Audit      coreaudit.LogStore
	AuditToken string
	Fleet      metrics.FleetRecorder
	// Gatherer serves /metrics (MetricsPath) when set.
	Gatherer    prometheus.Gatherer
	MetricsPath string

	RankDefaults     units.RankDefaults
	LandmarkDefaults landmarks.Defaults
	Log              logger.Logger
}

// NewRouter mounts every route.
func NewRouter(d Deps) *mux.Router {
	if d.Log == nil {
		d.Log = infralogger.NopLogger{}
	}
	r := mux.NewRouter()
	r.Use(recoverer(d.Log), accessLog(d.Log))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	requests.Register(r, d.Dispatcher)
	units.Register(r, d.Dispatcher, d.RankDefaults)
	overview.Register(r, d.Dispatcher, d.Fleet)
	if d.Landmarks != nil {
		landmarks.Register(r, d.Landmarks, d.LandmarkDefaults)
	}
	if d.Audit != nil {
		audit.Register(r, d.Audit, d.AuditToken)
	}
	if d.Gatherer != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.JSON(w, http.StatusNotFound, respond.ErrorBody{Error: "not found"})
	})
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func accessLog(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Debugw("http request", map[string]any{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			})
		})
	}
}

// recoverer turns handler panics into 500s and reports them.
func recoverer(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					log.Errorf("panic serving %s %s: %v", r.Method, r.URL.Path, v)
					monitoring.CapturePanic(v)
					respond.JSON(w, http.StatusInternalServerError, respond.ErrorBody{Error: "internal error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
