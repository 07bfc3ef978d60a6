// Package cache memoizes geocoding lookups in Redis. Cache failures are never
// fatal: the wrapped provider is consulted instead.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kilianp07/ambudispatch/core/geocode"
	"github.com/kilianp07/ambudispatch/core/logger"
	"github.com/kilianp07/ambudispatch/core/model"
)

// DefaultTTL keeps addresses for a day; street geometry rarely moves.
const DefaultTTL = 24 * time.Hour

// Config for the Redis connection.
type Config struct {
	Addr     string        `json:"addr"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	TTL      time.Duration `json:"ttl"`
	Prefix   string        `json:"prefix"`
}

// Open returns a client for cfg, or nil when no address is set.
func Open(cfg Config) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}

// GeocodeProvider wraps a geocode.Provider with a Redis read-through cache.
type GeocodeProvider struct {
	next   geocode.Provider
	rc     *redis.Client
	ttl    time.Duration
	prefix string
	log    logger.Logger
}

var _ geocode.Provider = (*GeocodeProvider)(nil)

// NewGeocodeProvider returns next unchanged when rc is nil.
func NewGeocodeProvider(next geocode.Provider, rc *redis.Client, cfg Config, log logger.Logger) geocode.Provider {
	if rc == nil {
		return next
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "ambudispatch:geo:"
	}
	return &GeocodeProvider{next: next, rc: rc, ttl: cfg.TTL, prefix: cfg.Prefix, log: log}
}

type cachedPlace struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Address string  `json:"address"`
}

func (c *GeocodeProvider) forwardKey(text string) string {
	return c.prefix + "fwd:" + strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func (c *GeocodeProvider) reverseKey(at model.Coordinate) string {
	return c.prefix + fmt.Sprintf("rev:%.5f,%.5f", at.Latitude, at.Longitude)
}

func (c *GeocodeProvider) Forward(ctx context.Context, text string) (geocode.Place, error) {
	key := c.forwardKey(text)
	if s, err := c.rc.Get(ctx, key).Result(); err == nil {
		var cp cachedPlace
		if json.Unmarshal([]byte(s), &cp) == nil {
			return geocode.Place{Location: model.Coordinate{Latitude: cp.Lat, Longitude: cp.Lon}, Address: cp.Address}, nil
		}
	} else if err != redis.Nil {
		c.log.Debugf("geocode cache get %s: %v", key, err)
	}

	p, err := c.next.Forward(ctx, text)
	if err != nil {
		return p, err
	}
	b, _ := json.Marshal(cachedPlace{Lat: p.Location.Latitude, Lon: p.Location.Longitude, Address: p.Address})
	if err := c.rc.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.log.Debugf("geocode cache set %s: %v", key, err)
	}
	return p, nil
}

func (c *GeocodeProvider) Reverse(ctx context.Context, at model.Coordinate) (string, error) {
	key := c.reverseKey(at)
	if s, err := c.rc.Get(ctx, key).Result(); err == nil && s != "" {
		return s, nil
	} else if err != nil && err != redis.Nil {
		c.log.Debugf("geocode cache get %s: %v", key, err)
	}

	addr, err := c.next.Reverse(ctx, at)
	if err != nil {
		return "", err
	}
	if err := c.rc.Set(ctx, key, addr, c.ttl).Err(); err != nil {
		c.log.Debugf("geocode cache set %s: %v", key, err)
	}
	return addr, nil
}
