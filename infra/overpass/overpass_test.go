package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ambudispatch/core/model"
)

var center = model.Coordinate{Latitude: 12.9716, Longitude: 77.5946}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(center, 5, `Hos"pital]`, 25*time.Second)
	assert.Contains(t, q, "[out:json][timeout:25];")
	assert.Contains(t, q, `node["amenity"="hospital"](around:5000,12.971600,77.594600);`)
	assert.Contains(t, q, `way["amenity"="hospital"]`)
	assert.Contains(t, q, `relation["amenity"="hospital"]`)
	assert.Contains(t, q, "out center tags;")
}

func TestQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostForm.Get("data"), `"amenity"="hospital"`)
		_, _ = w.Write([]byte(`{"elements":[
			{"type":"node","lat":12.97,"lon":77.59,"tags":{"name":"City Hospital","addr:housenumber":"12","addr:street":"MG Road","addr:city":"Bengaluru"}},
			{"type":"node","lat":12.97,"lon":77.59,"tags":{"amenity":"hospital"}},
			{"type":"way","center":{"lat":12.98,"lon":77.60},"tags":{"name":"General","addr:full":"1 Main St"}},
			{"type":"relation","tags":{"name":"No geometry"}}
		]}`))
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL}, nil)
	got, err := c.Query(context.Background(), center, 5, "hospital")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "City Hospital", got[0].Name)
	assert.Equal(t, "12 MG Road, Bengaluru", got[0].Address)
	assert.Empty(t, got[1].Name)
	assert.Equal(t, model.Coordinate{Latitude: 12.98, Longitude: 77.60}, got[2].Location)
	assert.Equal(t, "1 Main St", got[2].Address)
}

func TestQueryRejectsEmptyCategory(t *testing.T) {
	_, err := New(Config{URL: "http://unused"}, nil).Query(context.Background(), center, 5, `"]`)
	require.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestQueryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusBadRequest)
	}))
	defer srv.Close()
	_, err := New(Config{URL: srv.URL}, nil).Query(context.Background(), center, 5, "hospital")
	require.Error(t, err)
}
