// Package requests exposes emergency intake and lifecycle updates over HTTP.
package requests

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kilianp07/ambudispatch/api/respond"
	"github.com/kilianp07/ambudispatch/core/dispatch"
	"github.com/kilianp07/ambudispatch/core/model"
)

// Dispatcher is the part of the lifecycle manager these handlers need.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (dispatch.Outcome, error)
	UpdateStatus(ctx context.Context, id string, target model.RequestStatus) (model.EmergencyRequest, error)
	Requests(ctx context.Context) ([]model.EmergencyRequest, error)
}

// Register mounts the handlers on r.
func Register(r *mux.Router, d Dispatcher) {
	r.Handle("/api/requests", NewCreateHandler(d)).Methods(http.MethodPost)
	r.Handle("/api/requests", NewListHandler(d)).Methods(http.MethodGet)
	r.Handle("/api/requests/{id}", NewStatusHandler(d)).Methods(http.MethodPatch)
}

// NewCreateHandler dispatches a new emergency. A request stored without a
// unit still answers 201; the outcome carries the escalation number. Every
// failed dispatch, validation included, answers with the error and the
// outcome so clients can tell "no coverage" from a system error.
func NewCreateHandler(d Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req dispatch.Request
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			respond.BadRequest(w, "invalid body: "+err.Error())
			return
		}
		out, err := d.Dispatch(r.Context(), req)
		if err != nil {
			body := respond.ErrorBody{Error: err.Error()}
			var ve *model.ValidationError
			if errors.As(err, &ve) {
				body.Fields = ve.Fields
			}
			respond.JSON(w, respond.Status(err), struct {
				respond.ErrorBody
				Outcome dispatch.Outcome `json:"outcome"`
			}{body, out})
			return
		}
		respond.JSON(w, http.StatusCreated, out)
	})
}

// NewListHandler lists requests, optionally only active ones (?active=true).
func NewListHandler(d Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs, err := d.Requests(r.Context())
		if err != nil {
			respond.Error(w, err)
			return
		}
		if r.URL.Query().Get("active") == "true" {
			active := reqs[:0]
			for _, er := range reqs {
				if er.Active() {
					active = append(active, er)
				}
			}
			reqs = active
		}
		if reqs == nil {
			reqs = []model.EmergencyRequest{}
		}
		respond.JSON(w, http.StatusOK, reqs)
	})
}

type statusBody struct {
	Status string `json:"status"`
}

// NewStatusHandler moves a request to the status in the body.
func NewStatusHandler(d Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body statusBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respond.BadRequest(w, "invalid body: "+err.Error())
			return
		}
		target, ok := model.ParseRequestStatus(body.Status)
		if !ok {
			respond.BadRequest(w, "unknown status "+body.Status)
			return
		}
		er, err := d.UpdateStatus(r.Context(), mux.Vars(r)["id"], target)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, er)
	})
}
