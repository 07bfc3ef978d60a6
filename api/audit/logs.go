// Package audit exposes the dispatch audit log over HTTP.
package audit

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kilianp07/ambudispatch/api/respond"
	coreaudit "github.com/kilianp07/ambudispatch/core/audit"
)

func Register(r *mux.Router, store coreaudit.LogStore, token string) {
	r.Handle("/api/audit", NewLogHandler(store, token)).Methods(http.MethodGet)
}

// NewLogHandler returns an HTTP handler exposing audit records via GET /api/audit.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
// Filters: start, end (RFC3339), unit_id, request_id, kind, limit.
func NewLogHandler(store coreaudit.LogStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				respond.JSON(w, http.StatusUnauthorized, respond.ErrorBody{Error: "unauthorized"})
				return
			}
		}
		q := coreaudit.LogQuery{
			UnitID:    r.URL.Query().Get("unit_id"),
			RequestID: r.URL.Query().Get("request_id"),
			Kind:      coreaudit.Kind(r.URL.Query().Get("kind")),
		}
		for name, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
			s := r.URL.Query().Get(name)
			if s == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				respond.BadRequest(w, name+" must be RFC3339")
				return
			}
			*dst = t
		}
		limit, err := respond.Int(r, "limit", 0)
		if err != nil {
			respond.Error(w, err)
			return
		}
		q.Limit = limit

		records, err := store.Query(r.Context(), q)
		if err != nil {
			respond.JSON(w, http.StatusInternalServerError, respond.ErrorBody{Error: err.Error()})
			return
		}
		if records == nil {
			records = []coreaudit.LogRecord{}
		}
		respond.JSON(w, http.StatusOK, records)
	})
}
