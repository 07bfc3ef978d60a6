package nominatim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ambudispatch/core/model"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "ambudispatch-test", r.Header.Get("User-Agent"))
		switch r.URL.Query().Get("q") {
		case "MG Road, Bangalore":
			_, _ = w.Write([]byte(`[{"lat":"12.9755","lon":"77.6068","display_name":"MG Road, Bengaluru, Karnataka, India"}]`))
		case "broken":
			_, _ = w.Write([]byte(`[{"lat":"abc","lon":"77.6"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	})
	mux.HandleFunc("/reverse", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lat") == "0.000000" {
			_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
			return
		}
		_, _ = w.Write([]byte(`{"lat":"12.97","lon":"77.59","display_name":"Cubbon Park, Bengaluru"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestForward(t *testing.T) {
	srv := newServer(t)
	c := New(Config{URL: srv.URL + "/", UserAgent: "ambudispatch-test"}, nil)

	p, err := c.Forward(context.Background(), "MG Road, Bangalore")
	require.NoError(t, err)
	assert.InDelta(t, 12.9755, p.Location.Latitude, 1e-9)
	assert.InDelta(t, 77.6068, p.Location.Longitude, 1e-9)
	assert.Contains(t, p.Address, "MG Road")

	_, err = c.Forward(context.Background(), "nowhere at all")
	require.ErrorIs(t, err, model.ErrNotFound)

	_, err = c.Forward(context.Background(), "broken")
	require.ErrorIs(t, err, model.ErrInvalidCoordinate)
}

func TestReverse(t *testing.T) {
	srv := newServer(t)
	c := New(Config{URL: srv.URL, UserAgent: "ambudispatch-test"}, nil)

	addr, err := c.Reverse(context.Background(), model.Coordinate{Latitude: 12.97, Longitude: 77.59})
	require.NoError(t, err)
	assert.Equal(t, "Cubbon Park, Bengaluru", addr)

	_, err = c.Reverse(context.Background(), model.Coordinate{})
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()
	c := New(Config{URL: srv.URL}, nil)
	_, err := c.Forward(context.Background(), "x")
	require.Error(t, err)
}
