// Package osrm implements routing.Provider on the OSRM route service.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/core/routing"
	"github.com/kilianp07/ambudispatch/infra/httpx"
)

const (
	DefaultURL     = "https://router.project-osrm.org"
	DefaultProfile = "driving"
)

type Config struct {
	URL       string        `json:"url"`
	Profile   string        `json:"profile"`
	UserAgent string        `json:"user_agent"`
	Timeout   time.Duration `json:"timeout"`
}

// Client queries /route/v1 for the full GeoJSON geometry.
type Client struct {
	baseURL string
	profile string
	http    *httpx.Client
}

var _ routing.Provider = (*Client)(nil)

func New(cfg Config, rec metrics.ProviderCallRecorder) *Client {
	base := strings.TrimSuffix(cfg.URL, "/")
	if base == "" {
		base = DefaultURL
	}
	profile := cfg.Profile
	if profile == "" {
		profile = DefaultProfile
	}
	return &Client{
		baseURL: base,
		profile: profile,
		// Routing failures fall back to straight line, so one attempt is enough.
		http: httpx.New(httpx.Options{Provider: "osrm", UserAgent: cfg.UserAgent, Timeout: cfg.Timeout, MaxAttempts: 1, Recorder: rec}),
	}
}

type routeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

func (c *Client) endpoint(from, to model.Coordinate) string {
	return fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		c.baseURL, c.profile, from.Longitude, from.Latitude, to.Longitude, to.Latitude)
}

// Route returns the first route OSRM proposes.
func (c *Client) Route(ctx context.Context, from, to model.Coordinate) (routing.Route, error) {
	endpoint := c.endpoint(from, to)
	resp, err := c.http.Do(ctx, func() (*http.Request, error) {
		return c.http.NewRequest(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return routing.Route{}, fmt.Errorf("osrm route: %w", err)
	}
	defer resp.Body.Close()

	var decoded routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return routing.Route{}, fmt.Errorf("decode osrm route: %w", err)
	}
	if decoded.Code != "Ok" || len(decoded.Routes) == 0 {
		return routing.Route{}, fmt.Errorf("%w: osrm code %q %s", model.ErrRouteUnavailable, decoded.Code, decoded.Message)
	}

	r := decoded.Routes[0]
	line := make([]model.Coordinate, 0, len(r.Geometry.Coordinates))
	for _, p := range r.Geometry.Coordinates {
		if len(p) < 2 {
			continue
		}
		line = append(line, model.Coordinate{Latitude: p[1], Longitude: p[0]})
	}
	return routing.Route{
		Polyline:   line,
		DistanceKm: r.Distance / 1000,
		ETAMinutes: r.Duration / 60,
	}, nil
}
