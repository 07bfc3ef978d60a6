// Package app wires configuration into a running dispatch service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/kilianp07/ambudispatch/api"
	apilandmarks "github.com/kilianp07/ambudispatch/api/landmarks"
	"github.com/kilianp07/ambudispatch/api/units"
	"github.com/kilianp07/ambudispatch/config"
	"github.com/kilianp07/ambudispatch/core/audit"
	"github.com/kilianp07/ambudispatch/core/dispatch"
	"github.com/kilianp07/ambudispatch/core/events"
	"github.com/kilianp07/ambudispatch/core/geocode"
	"github.com/kilianp07/ambudispatch/core/landmarks"
	"github.com/kilianp07/ambudispatch/core/logger"
	coremetrics "github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/kilianp07/ambudispatch/core/model"
	coremon "github.com/kilianp07/ambudispatch/core/monitoring"
	"github.com/kilianp07/ambudispatch/core/ranking"
	"github.com/kilianp07/ambudispatch/core/routing"
	"github.com/kilianp07/ambudispatch/core/store"
	"github.com/kilianp07/ambudispatch/infra/cache"
	infralogger "github.com/kilianp07/ambudispatch/infra/logger"
	inframetrics "github.com/kilianp07/ambudispatch/infra/metrics"
	inframon "github.com/kilianp07/ambudispatch/infra/monitoring"
	"github.com/kilianp07/ambudispatch/infra/mqtt"
	"github.com/kilianp07/ambudispatch/infra/nominatim"
	"github.com/kilianp07/ambudispatch/infra/osrm"
	"github.com/kilianp07/ambudispatch/infra/overpass"
	"github.com/kilianp07/ambudispatch/infra/tracing"
	"github.com/kilianp07/ambudispatch/internal/eventbus"

	// store backends register themselves with core/store
	_ "github.com/kilianp07/ambudispatch/infra/baserow"
	_ "github.com/kilianp07/ambudispatch/infra/sqlstore"
)

// Service owns every long-lived component.
type Service struct {
	Config    *config.Config
	Manager   *dispatch.Manager
	Landmarks *landmarks.Searcher
	Audit     audit.LogStore
	Sink      coremetrics.MetricsSink

	store    store.Store
	bus      *eventbus.TypedBus[events.Event]
	redis    *redis.Client
	tracing  tracing.Shutdown
	gatherer prometheus.Gatherer
	log      logger.Logger
}

// New builds the service. Nothing is started and no network connection is
// opened except the optional Redis client, which connects lazily.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*Service, error) {
	if log == nil {
		log = infralogger.NopLogger{}
	}
	s := &Service{Config: cfg, log: log}

	shutdown, err := tracing.Init(ctx, cfg.Tracing, nil, infralogger.New("tracing"))
	if err != nil {
		return nil, err
	}
	s.tracing = shutdown

	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	coremon.Init(mon)

	if s.Sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	for _, m := range cfg.Metrics.Sinks {
		if m.Type == "prometheus" {
			s.gatherer = prometheus.DefaultGatherer
		}
	}
	calls, _ := s.Sink.(coremetrics.ProviderCallRecorder)

	if s.store, err = store.NewStore(cfg.Store); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	var provider geocode.Provider = nominatim.New(nominatim.Config{
		URL:       cfg.Geocoding.URL,
		UserAgent: cfg.Geocoding.UserAgent,
		Email:     cfg.Geocoding.Email,
		Language:  cfg.Geocoding.Language,
		Timeout:   cfg.Geocoding.Timeout,
	}, calls)
	if s.redis = cache.Open(cfg.Geocoding.Cache); s.redis != nil {
		provider = cache.NewGeocodeProvider(provider, s.redis, cfg.Geocoding.Cache, infralogger.New("geocache"))
	}
	geocoder := geocode.New(provider, geocode.Config{
		CountryHint: cfg.Geocoding.CountryHint,
		RegionHints: cfg.Geocoding.RegionHints,
		Timeout:     cfg.Geocoding.Timeout,
	}, infralogger.New("geocode"))

	router := routing.NewRouter(osrm.New(osrm.Config{
		URL:       cfg.Routing.URL,
		Profile:   cfg.Routing.Profile,
		UserAgent: cfg.Geocoding.UserAgent,
		Timeout:   cfg.Routing.Timeout,
	}, calls), cfg.Routing.Timeout)
	ranker := ranking.New(router, cfg.Dispatch.RankConcurrency, infralogger.New("ranking"))

	if s.Manager, err = dispatch.NewManager(s.store, geocoder, ranker, cfg.Dispatch, infralogger.New("dispatch")); err != nil {
		return nil, fmt.Errorf("dispatch manager: %w", err)
	}
	s.Manager.SetMetricsSink(s.Sink)

	if s.Audit, err = audit.NewLogStore(cfg.Audit.Module()); err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}
	s.Manager.SetLogStore(s.Audit)

	s.bus = eventbus.NewTyped[events.Event]()
	s.Manager.SetEventBus(s.bus)

	if cfg.Features.Landmarks() {
		idx := overpass.New(overpass.Config{
			URL:       cfg.Landmarks.URL,
			UserAgent: cfg.Geocoding.UserAgent,
			Timeout:   cfg.Landmarks.Timeout,
		}, calls)
		s.Landmarks = landmarks.NewSearcher(idx, cfg.Landmarks.Timeout, infralogger.New("landmarks"))
	}
	return s, nil
}

// DefaultCenter is the fallback location for rank and landmark lookups, or
// nil when GPS auto-detect is on and callers must send their own position.
func (s *Service) DefaultCenter() *model.Coordinate {
	if s.Config.Features.GPSAutodetect() {
		return nil
	}
	c := s.Config.Dispatch.DefaultCenter
	return &c
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	deps := api.Deps{
		Dispatcher:  s.Manager,
		Audit:       s.Audit,
		AuditToken:  s.Config.Audit.Token,
		Gatherer:    s.gatherer,
		MetricsPath: s.Config.Metrics.PrometheusPath,
		RankDefaults: units.RankDefaults{
			Center:       s.DefaultCenter(),
			StatusFilter: s.Config.Dispatch.StatusFilter,
			MaxResults:   s.Config.Dispatch.MaxCandidates,
		},
		LandmarkDefaults: apilandmarks.Defaults{
			Center:   s.DefaultCenter(),
			RadiusKm: s.Config.Landmarks.DefaultRadiusKm,
			Category: s.Config.Landmarks.DefaultCategory,
		},
		Log: infralogger.New("http"),
	}
	if rec, ok := s.Sink.(coremetrics.FleetRecorder); ok {
		deps.Fleet = rec
	}
	if s.Landmarks != nil {
		deps.Landmarks = s.Landmarks
	}
	return api.NewRouter(deps)
}

// Run starts the event consumers and serves HTTP until ctx is cancelled, then
// shuts the server down within the configured timeout.
func (s *Service) Run(ctx context.Context) error {
	inframetrics.StartEventCollector(ctx, s.bus, s.Sink)

	if s.Config.MQTT.Broker != "" {
		pub, err := mqtt.NewPublisher(s.Config.MQTT)
		if err != nil {
			return fmt.Errorf("mqtt publisher: %w", err)
		}
		defer pub.Disconnect()
		go pub.Run(ctx, s.bus)
	}

	srv := &http.Server{
		Addr:         s.Config.HTTP.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.Config.HTTP.ReadTimeout,
		WriteTimeout: s.Config.HTTP.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shCtx, cancel := context.WithTimeout(context.Background(), s.Config.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases stores, connections and exporters.
func (s *Service) Close() error {
	var errs []error
	if s.Manager != nil {
		errs = append(errs, s.Manager.Close())
	}
	if c, ok := s.store.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	closeSink(s.Sink)
	if s.tracing != nil {
		tracing.ShutdownWithTimeout(s.tracing, s.log)
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}

func closeSink(sink coremetrics.MetricsSink) {
	switch c := sink.(type) {
	case *coremetrics.MultiSink:
		for _, s := range c.Sinks {
			closeSink(s)
		}
	case interface{ Close() }:
		c.Close()
	}
}
