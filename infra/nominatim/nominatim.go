// Package nominatim implements geocode.Provider on the OpenStreetMap
// Nominatim search and reverse endpoints.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/ambudispatch/core/geocode"
	"github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/infra/httpx"
)

// DefaultURL is the public Nominatim instance.
const DefaultURL = "https://nominatim.openstreetmap.org"

// Config for the Nominatim client. Public instances require a descriptive
// user agent.
type Config struct {
	URL       string        `json:"url"`
	UserAgent string        `json:"user_agent"`
	Email     string        `json:"email"`
	Language  string        `json:"language"`
	Timeout   time.Duration `json:"timeout"`
}

// Client talks to Nominatim.
type Client struct {
	baseURL  string
	email    string
	language string
	http     *httpx.Client
}

var _ geocode.Provider = (*Client)(nil)

// New returns a Client. rec may be nil.
func New(cfg Config, rec metrics.ProviderCallRecorder) *Client {
	base := strings.TrimSuffix(cfg.URL, "/")
	if base == "" {
		base = DefaultURL
	}
	return &Client{
		baseURL:  base,
		email:    cfg.Email,
		language: cfg.Language,
		http: httpx.New(httpx.Options{
			Provider:  "nominatim",
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
			Recorder:  rec,
		}),
	}
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (p place) coordinate() (model.Coordinate, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("%w: lat %q", model.ErrInvalidCoordinate, p.Lat)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("%w: lon %q", model.ErrInvalidCoordinate, p.Lon)
	}
	return model.NewCoordinate(lat, lon)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("format", "jsonv2")
	if c.email != "" {
		q.Set("email", c.email)
	}
	if c.language != "" {
		q.Set("accept-language", c.language)
	}
	endpoint := c.baseURL + path + "?" + q.Encode()
	resp, err := c.http.Do(ctx, func() (*http.Request, error) {
		return c.http.NewRequest(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return fmt.Errorf("nominatim %s: %w", path, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode nominatim %s: %w", path, err)
	}
	return nil
}

// Forward returns the best match for text.
func (c *Client) Forward(ctx context.Context, text string) (geocode.Place, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("limit", "1")
	var hits []place
	if err := c.get(ctx, "/search", q, &hits); err != nil {
		return geocode.Place{}, err
	}
	if len(hits) == 0 {
		return geocode.Place{}, fmt.Errorf("%w: %q", model.ErrNotFound, text)
	}
	loc, err := hits[0].coordinate()
	if err != nil {
		return geocode.Place{}, err
	}
	return geocode.Place{Location: loc, Address: hits[0].DisplayName}, nil
}

// Reverse returns the display name at c.
func (c *Client) Reverse(ctx context.Context, at model.Coordinate) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(at.Latitude, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(at.Longitude, 'f', 6, 64))
	var hit place
	if err := c.get(ctx, "/reverse", q, &hit); err != nil {
		return "", err
	}
	if hit.Error != "" || hit.DisplayName == "" {
		return "", fmt.Errorf("%w: reverse %s", model.ErrNotFound, at)
	}
	return hit.DisplayName, nil
}
