package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-match/internal/catalog"
	"github.com/sells-group/inspection-match/internal/config"
	"github.com/sells-group/inspection-match/internal/kv"
	"github.com/sells-group/inspection-match/internal/match"
	"github.com/sells-group/inspection-match/internal/monitoring"
	"github.com/sells-group/inspection-match/internal/resilience"
	"github.com/sells-group/inspection-match/internal/shortlist"
	"github.com/sells-group/inspection-match/internal/store"
	"github.com/sells-group/inspection-match/pkg/geocode"
	"github.com/sells-group/inspection-match/pkg/routing"
)

// appEnv holds the store, standby backend and services needed by the
// search, standby and serve commands.
type appEnv struct {
	Store     store.Store
	KV        kv.Store
	Catalog   *catalog.Catalog
	Engine    *match.Engine
	Shortlist *shortlist.Manager
	Health    *monitoring.Checker
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.KV != nil {
		_ = e.KV.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv opens the store and standby backend, loads the catalog and builds
// the engine and shortlist manager. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := match.ValidateScoringConfig(cfg.Scoring); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	kvStore, err := initKV(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	cat := catalog.Load(ctx, st)

	estimator := routing.NewFromConfig(routingConfig(cfg))
	if !estimator.HasProvider() {
		zap.L().Debug("google api key not set, using great-circle distances")
	}

	engine := match.NewEngine(
		geocode.NewFromConfig(geocodeConfig(cfg)),
		estimator,
		st,
		match.NewScorer(cfg.Scoring),
		match.WithCatalog(cat),
		match.WithGeocodeConcurrency(cfg.Match.GeocodeConcurrency),
		match.WithEstimateConcurrency(cfg.Match.EstimateConcurrency),
	)

	var opts []shortlist.Option
	if cfg.Standby.Key != "" {
		opts = append(opts, shortlist.WithKey(cfg.Standby.Key))
	}

	return &appEnv{
		Store:     st,
		KV:        kvStore,
		Catalog:   cat,
		Engine:    engine,
		Shortlist: shortlist.New(kvStore, st, st, opts...),
		Health:    newHealthChecker(st, kvStore, time.Duration(cfg.Server.HealthIntervalSecs)*time.Second),
	}, nil
}

// newHealthChecker probes the store and the standby backend.
func newHealthChecker(st store.Store, kvStore kv.Store, interval time.Duration) *monitoring.Checker {
	return monitoring.NewChecker(interval,
		monitoring.Probe{Name: "store", Check: st.Ping},
		monitoring.Probe{Name: "standby", Check: func(ctx context.Context) error {
			_, err := kvStore.Get(ctx, "health:probe")
			return err
		}},
	)
}

// initStore opens the configured store and applies its schema.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initKV opens the standby backend. A Redis backend is pinged so that a
// misconfigured URL fails at startup.
func initKV(ctx context.Context) (kv.Store, error) {
	s, err := kv.Open(cfg.Standby)
	if err != nil {
		return nil, eris.Wrap(err, "open standby backend")
	}
	if r, ok := s.(*kv.RedisStore); ok {
		if err := r.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, eris.Wrap(err, "ping redis")
		}
	}
	zap.L().Debug("standby backend ready", zap.String("backend", cfg.Standby.Backend))
	return s, nil
}

func geocodeConfig(c *config.Config) geocode.Config {
	return geocode.Config{
		GoogleAPIKey:       c.Google.APIKey,
		GoogleRateLimit:    c.Google.RateLimit,
		NominatimURL:       c.Nominatim.BaseURL,
		NominatimUserAgent: c.Nominatim.UserAgent,
		NominatimRateLimit: c.Nominatim.RateLimit,
		FallbackDelay:      time.Duration(c.Nominatim.FallbackDelayMs) * time.Millisecond,
		Country:            c.Nominatim.Country,
		Retry:              resilience.FromRetryConfig(c.Resilience.MaxAttempts, c.Resilience.InitialBackoffMs, c.Resilience.MaxBackoffMs),
		Breaker:            resilience.FromBreakerConfig(c.Resilience.FailureThreshold, c.Resilience.ResetTimeoutSecs),
	}
}

// routingConfig leaves the API key empty when routing is disabled so the
// estimator falls back to great-circle distances.
func routingConfig(c *config.Config) routing.Config {
	rc := routing.Config{
		BaseURL:   c.Routing.BaseURL,
		Language:  c.Google.Language,
		RateLimit: c.Routing.RateLimit,
		Timeout:   time.Duration(c.Routing.TimeoutSecs) * time.Second,
	}
	if c.Routing.Enabled {
		rc.APIKey = c.Google.APIKey
	}
	return rc
}

// searchTimeout bounds one search; zero means no bound.
func searchTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if cfg == nil || cfg.Match.SearchTimeoutSecs <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(cfg.Match.SearchTimeoutSecs)*time.Second)
}
