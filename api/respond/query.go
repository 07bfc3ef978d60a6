package respond

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/kilianp07/ambudispatch/core/model"
)

// Location reads lat and lon from the query. When both are absent it returns
// fallback, or an error when fallback is nil.
func Location(r *http.Request, fallback *model.Coordinate) (model.Coordinate, error) {
	q := r.URL.Query()
	latS, lonS := q.Get("lat"), q.Get("lon")
	if latS == "" && lonS == "" {
		if fallback == nil {
			return model.Coordinate{}, fmt.Errorf("%w: lat and lon are required", model.ErrInvalidRequest)
		}
		return *fallback, nil
	}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("%w: lat %q", model.ErrInvalidCoordinate, latS)
	}
	lon, err := strconv.ParseFloat(lonS, 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("%w: lon %q", model.ErrInvalidCoordinate, lonS)
	}
	return model.NewCoordinate(lat, lon)
}

// Int reads a non-negative integer parameter, def when absent.
func Int(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", model.ErrInvalidRequest, name)
	}
	return n, nil
}

// Float reads a float parameter, def when absent.
func Float(r *http.Request, name string, def float64) (float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", model.ErrInvalidRequest, name)
	}
	return f, nil
}
