package baserow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ambudispatch/core/factory"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/core/store"
)

func newTestStore(t *testing.T, h http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	s, err := New(Config{URL: srv.URL, Token: "secret", UnitsTable: "101", RequestsTable: "202"})
	require.NoError(t, err)
	return s
}

func TestFetchFollowsPagination(t *testing.T) {
	var srvURL string
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/101/", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("user_field_names"))
		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(`{"next":null,"results":[{"id":2,"Name":"Unit B","status":"Busy","lat":"12.9","lon":"77.6"}]}`))
			return
		}
		fmt.Fprintf(w, `{"next":"%s/101/?user_field_names=true&page=2","results":[{"id":1,"Name":"Unit A","status":"Available","latitude":12.97,"longitude":77.59}]}`, srvURL)
	})
	srvURL = s.baseURL

	rows, err := s.Fetch(context.Background(), store.Units)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0][store.FieldID])
	assert.Equal(t, "2", rows[1][store.FieldID])

	u := store.ParseUnit(rows[0])
	assert.Equal(t, "Unit A", u.Name)
	require.NotNil(t, u.Location)
	assert.InDelta(t, 12.97, u.Location.Latitude, 1e-9)
}

func TestCreate(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/202/", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "id")
		body["id"] = 77
		_ = json.NewEncoder(w).Encode(body)
	})

	rec, err := s.Create(context.Background(), store.Requests, store.Record{"id": "x", "patient_name": "Asha"})
	require.NoError(t, err)
	assert.Equal(t, "77", rec[store.FieldID])
	assert.Equal(t, "Asha", rec["patient_name"])
}

func TestCreateIsNotRetried(t *testing.T) {
	var saved atomic.Int32
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		n := saved.Add(1)
		if n == 1 {
			// the row is stored but the gateway loses the response
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, `{"id":%d,"patient_name":"Asha"}`, n)
	})

	_, err := s.Create(context.Background(), store.Requests, store.Record{"patient_name": "Asha", "assigned_unit": "1"})
	require.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.Equal(t, int32(1), saved.Load(), "create must not write a second request row")
}

func TestFetchRejectsForeignNextLink(t *testing.T) {
	var calls atomic.Int32
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"next":"https://elsewhere.example/101/?page=2","results":[{"id":1,"Name":"Unit A"}]}`))
	})

	_, err := s.Fetch(context.Background(), store.Units)
	require.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "elsewhere.example")
	assert.Equal(t, int32(1), calls.Load())
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		if r.URL.Path == "/202/404/" {
			http.Error(w, `{"error":"ERROR_ROW_DOES_NOT_EXIST"}`, http.StatusNotFound)
			return
		}
		assert.Equal(t, "/202/5/", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":5,"status":"Completed"}`))
	})

	rec, err := s.Update(context.Background(), store.Requests, "5", store.Record{"status": "Completed"})
	require.NoError(t, err)
	assert.Equal(t, "Completed", rec["status"])

	_, err = s.Update(context.Background(), store.Requests, "404", store.Record{"status": "Completed"})
	require.ErrorIs(t, err, store.ErrRecordNotFound)
	assert.NotErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestServerFailureIsStoreUnavailable(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	})
	_, err := s.Fetch(context.Background(), store.Requests)
	require.ErrorIs(t, err, model.ErrStoreUnavailable)
	var se *model.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "fetch", se.Op)
}

func TestConfigValidate(t *testing.T) {
	err := Config{}.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "token"))
}

func TestRegisteredInStoreFactory(t *testing.T) {
	st, err := store.NewStore(factory.ModuleConfig{Type: "baserow", Conf: map[string]any{
		"token": "t", "units_table": 1, "requests_table": "2",
	}})
	require.NoError(t, err)
	assert.IsType(t, &Store{}, st)
}
