// Package overpass implements landmarks.Index on the Overpass API.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/kilianp07/ambudispatch/core/landmarks"
	"github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/infra/httpx"
)

const DefaultURL = "https://overpass-api.de/api/interpreter"

type Config struct {
	URL       string        `json:"url"`
	UserAgent string        `json:"user_agent"`
	Timeout   time.Duration `json:"timeout"`
}

// Client searches amenity=<category> around a point.
type Client struct {
	endpoint string
	timeout  time.Duration
	http     *httpx.Client
}

var _ landmarks.Index = (*Client)(nil)

func New(cfg Config, rec metrics.ProviderCallRecorder) *Client {
	endpoint := cfg.URL
	if endpoint == "" {
		endpoint = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = landmarks.DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		timeout:  timeout,
		http:     httpx.New(httpx.Options{Provider: "overpass", UserAgent: cfg.UserAgent, Timeout: timeout, Recorder: rec}),
	}
}

type element struct {
	Type   string                      `json:"type"`
	Lat    *float64                    `json:"lat"`
	Lon    *float64                    `json:"lon"`
	Center *struct{ Lat, Lon float64 } `json:"center"`
	Tags   map[string]string           `json:"tags"`
}

type response struct {
	Elements []element `json:"elements"`
}

// sanitizeCategory keeps the tag value safe to embed in an OverpassQL string.
func sanitizeCategory(category string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			return unicode.ToLower(r)
		}
		return -1
	}, category)
}

// BuildQuery returns the OverpassQL for nodes, ways and relations tagged
// amenity=category within radiusKm of center.
func BuildQuery(center model.Coordinate, radiusKm float64, category string, timeout time.Duration) string {
	around := fmt.Sprintf(`["amenity"="%s"](around:%d,%.6f,%.6f);`,
		sanitizeCategory(category), int(radiusKm*1000), center.Latitude, center.Longitude)
	return fmt.Sprintf("[out:json][timeout:%d];(node%sway%srelation%s);out center tags;",
		int(timeout.Seconds()), around, around, around)
}

// Query runs the search. Features keep empty names; filtering is left to the caller.
func (c *Client) Query(ctx context.Context, center model.Coordinate, radiusKm float64, category string) ([]landmarks.Feature, error) {
	if sanitizeCategory(category) == "" {
		return nil, fmt.Errorf("%w: category %q", model.ErrInvalidRequest, category)
	}
	form := url.Values{"data": {BuildQuery(center, radiusKm, category, c.timeout)}}.Encode()
	resp, err := c.http.Do(ctx, func() (*http.Request, error) {
		req, err := c.http.NewRequest(ctx, http.MethodPost, c.endpoint, strings.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("overpass query: %w", err)
	}
	defer resp.Body.Close()

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode overpass: %w", err)
	}

	out := make([]landmarks.Feature, 0, len(decoded.Elements))
	for _, e := range decoded.Elements {
		var loc model.Coordinate
		switch {
		case e.Lat != nil && e.Lon != nil:
			loc = model.Coordinate{Latitude: *e.Lat, Longitude: *e.Lon}
		case e.Center != nil:
			loc = model.Coordinate{Latitude: e.Center.Lat, Longitude: e.Center.Lon}
		default:
			continue
		}
		out = append(out, landmarks.Feature{
			Name:     e.Tags["name"],
			Location: loc,
			Address:  address(e.Tags),
		})
	}
	return out, nil
}

// address joins the addr:* tags in postal order.
func address(tags map[string]string) string {
	if full := tags["addr:full"]; full != "" {
		return full
	}
	street := strings.TrimSpace(tags["addr:housenumber"] + " " + tags["addr:street"])
	var parts []string
	for _, p := range []string{street, tags["addr:suburb"], tags["addr:city"], tags["addr:postcode"]} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
