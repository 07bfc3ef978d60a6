// Package landmarks finds named points of interest around a location.
package landmarks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/logger"
	"github.com/kilianp07/ambudispatch/core/model"
)

// DefaultCategory is searched when none is given.
const DefaultCategory = "hospital"

// DefaultTimeout bounds one index query.
const DefaultTimeout = 10 * time.Second

// MergeRadiusKm is how close two same-named hits must be to count as one
// place. An index often returns a node and the centroid of its area a few
// dozen metres apart.
const MergeRadiusKm = 0.15

// Feature is a raw index hit. Name may be empty.
type Feature struct {
	Name     string
	Location model.Coordinate
	Address  string
}

// Index is an external geospatial index.
type Index interface {
	Query(ctx context.Context, center model.Coordinate, radiusKm float64, category string) ([]Feature, error)
}

// Query describes one search.
type Query struct {
	Center   model.Coordinate
	RadiusKm float64
	Category string
	// MaxResults truncates after sorting. Zero means unlimited.
	MaxResults int
}

// Searcher ranks index hits by distance.
type Searcher struct {
	index   Index
	timeout time.Duration
	log     logger.Logger
}

// NewSearcher returns a Searcher.
func NewSearcher(idx Index, timeout time.Duration, log logger.Logger) *Searcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Searcher{index: idx, timeout: timeout, log: log}
}

// Search returns named features within RadiusKm of Center, nearest first,
// with duplicates (same name within MergeRadiusKm) removed. Index
// failures wrap model.ErrNotFound.
func (s *Searcher) Search(ctx context.Context, q Query) ([]model.Landmark, error) {
	if !q.Center.Valid() {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidCoordinate, q.Center)
	}
	if q.RadiusKm <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive, got %v", model.ErrInvalidRequest, q.RadiusKm)
	}
	category := strings.TrimSpace(q.Category)
	if category == "" {
		category = DefaultCategory
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	feats, err := s.index.Query(cctx, q.Center, q.RadiusKm, category)
	if err != nil {
		s.log.Warnf("landmarks: %s query around %s failed: %v", category, q.Center, err)
		return nil, fmt.Errorf("%w: %s near %s: %v", model.ErrNotFound, category, q.Center, err)
	}

	seen := make(map[string][]model.Coordinate, len(feats))
	out := make([]model.Landmark, 0, len(feats))
	for _, f := range feats {
		name := strings.TrimSpace(f.Name)
		if name == "" || !f.Location.Valid() {
			continue
		}
		d := geo.DistanceKm(q.Center, f.Location)
		if d > q.RadiusKm {
			continue
		}
		key := strings.ToLower(name)
		if near(seen[key], f.Location) {
			continue
		}
		seen[key] = append(seen[key], f.Location)
		out = append(out, model.Landmark{
			Name:       name,
			Location:   f.Location,
			Category:   category,
			Address:    strings.TrimSpace(f.Address),
			DistanceKm: d,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Name < out[j].Name
	})
	if q.MaxResults > 0 && len(out) > q.MaxResults {
		out = out[:q.MaxResults]
	}
	return out, nil
}

func near(kept []model.Coordinate, c model.Coordinate) bool {
	for _, k := range kept {
		if geo.DistanceKm(k, c) <= MergeRadiusKm {
			return true
		}
	}
	return false
}
