// Package geocode resolves free-text addresses to coordinates and back.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/kilianp07/ambudispatch/core/logger"
	"github.com/kilianp07/ambudispatch/core/model"
)

// Place is a forward geocoding match.
type Place struct {
	Location model.Coordinate
	Address  string
}

// Provider is an external geocoding service. Implementations return
// model.ErrNotFound when nothing matches; any other error is treated the same
// way by the Geocoder.
type Provider interface {
	Forward(ctx context.Context, text string) (Place, error)
	Reverse(ctx context.Context, c model.Coordinate) (string, error)
}

// Config tunes the Geocoder.
type Config struct {
	// CountryHint is appended to terse queries on retry, e.g. "India".
	CountryHint string `json:"country_hint"`
	// RegionHints are extra phrases whose presence means the query is already
	// qualified (state or city names).
	RegionHints []string `json:"region_hints"`
	// Timeout bounds each provider call.
	Timeout time.Duration `json:"timeout"`
}

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 4 * time.Second

// Geocoder wraps a Provider with the country-hint retry and reverse fallback.
type Geocoder struct {
	provider Provider
	cfg      Config
	log      logger.Logger
}

// New returns a Geocoder. A nil logger is not allowed.
func New(p Provider, cfg Config, log logger.Logger) *Geocoder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Geocoder{provider: p, cfg: cfg, log: log}
}

// Forward resolves text to a place. When the first lookup fails and text carries
// no recognizable country or region hint, it retries once with the country hint
// appended. Failures always wrap model.ErrNotFound.
func (g *Geocoder) Forward(ctx context.Context, text string) (Place, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Place{}, fmt.Errorf("%w: empty address", model.ErrNotFound)
	}
	place, err := g.forwardOnce(ctx, text)
	if err == nil {
		return place, nil
	}
	if g.cfg.CountryHint == "" || g.HasHint(text) || ctx.Err() != nil {
		return Place{}, fmt.Errorf("%w: %q: %v", model.ErrNotFound, text, err)
	}
	hinted := text + ", " + g.cfg.CountryHint
	g.log.Debugf("geocode: retrying %q as %q", text, hinted)
	place, err2 := g.forwardOnce(ctx, hinted)
	if err2 != nil {
		return Place{}, fmt.Errorf("%w: %q: %v", model.ErrNotFound, text, errors.Join(err, err2))
	}
	return place, nil
}

func (g *Geocoder) forwardOnce(ctx context.Context, text string) (Place, error) {
	cctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	place, err := g.provider.Forward(cctx, text)
	if err != nil {
		return Place{}, err
	}
	if !place.Location.Valid() {
		return Place{}, fmt.Errorf("%w: provider returned %v", model.ErrInvalidCoordinate, place.Location)
	}
	if place.Address == "" {
		place.Address = text
	}
	return place, nil
}

// Reverse returns a display address for c. It never fails: provider errors,
// timeouts and empty answers degrade to the "lat,lon" form.
func (g *Geocoder) Reverse(ctx context.Context, c model.Coordinate) string {
	cctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	addr, err := g.provider.Reverse(cctx, c)
	if err != nil {
		g.log.Debugf("geocode: reverse %s failed: %v", c, err)
		return c.String()
	}
	if strings.TrimSpace(addr) == "" {
		return c.String()
	}
	return addr
}

// HasHint reports whether text already names the country hint or one of the
// region hints as a whole word sequence.
func (g *Geocoder) HasHint(text string) bool {
	words := tokenize(text)
	hints := append([]string{g.cfg.CountryHint}, g.cfg.RegionHints...)
	for _, h := range hints {
		hw := tokenize(h)
		if len(hw) > 0 && containsSeq(words, hw) {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsSeq(words, seq []string) bool {
	for i := 0; i+len(seq) <= len(words); i++ {
		match := true
		for j := range seq {
			if words[i+j] != seq[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
