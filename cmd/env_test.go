//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/inspection-match/internal/catalog"
	"github.com/sells-group/inspection-match/internal/config"
	"github.com/sells-group/inspection-match/internal/match"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Store:   config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "inspection.db")},
		Standby: config.StandbyConfig{Backend: "sqlite", Key: "test:standby", SQLitePath: filepath.Join(dir, "standby.db")},
		Google:  config.GoogleConfig{APIKey: "key", Language: "pt-BR", RateLimit: 10},
		Nominatim: config.NominatimConfig{
			BaseURL: "http://nominatim.local/search", UserAgent: "test", RateLimit: 2,
			FallbackDelayMs: 250, Country: "Brasil",
		},
		Routing:    config.RoutingConfig{Enabled: true, BaseURL: "http://maps.local", RateLimit: 5, TimeoutSecs: 3},
		Match:      config.MatchConfig{GeocodeConcurrency: 3, EstimateConcurrency: 4, SearchTimeoutSecs: 30},
		Scoring:    match.DefaultScoringConfig(),
		Resilience: config.ResilienceConfig{MaxAttempts: 3, InitialBackoffMs: 100, MaxBackoffMs: 1000, FailureThreshold: 4, ResetTimeoutSecs: 20},
	}
}

func withConfig(t *testing.T, c *config.Config) {
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestGeocodeConfig(t *testing.T) {
	gc := geocodeConfig(testConfig(t))

	assert.Equal(t, "key", gc.GoogleAPIKey)
	assert.Equal(t, "http://nominatim.local/search", gc.NominatimURL)
	assert.Equal(t, 250*time.Millisecond, gc.FallbackDelay)
	assert.Equal(t, "Brasil", gc.Country)
	assert.Equal(t, 3, gc.Retry.MaxAttempts)
	assert.Equal(t, 4, gc.Breaker.FailureThreshold)
}

func TestRoutingConfig(t *testing.T) {
	c := testConfig(t)

	rc := routingConfig(c)
	assert.Equal(t, "key", rc.APIKey)
	assert.Equal(t, "pt-BR", rc.Language)
	assert.Equal(t, 3*time.Second, rc.Timeout)

	c.Routing.Enabled = false
	assert.Empty(t, routingConfig(c).APIKey, "disabled routing uses great-circle distances")
}

func TestInitEnv_SQLite(t *testing.T) {
	withConfig(t, testConfig(t))
	ctx := context.Background()

	env, err := initEnv(ctx)
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Engine)
	assert.NotNil(t, env.Shortlist)
	assert.Equal(t, "13", env.Catalog.StateID("MG"), "empty store falls back to bundled catalog")

	entries, err := env.Shortlist.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInitEnv_RejectsBadScoring(t *testing.T) {
	c := testConfig(t)
	c.Scoring.LoadWeight = -1
	withConfig(t, c)

	_, err := initEnv(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load_weight")
}

func TestInitKV_UnknownBackend(t *testing.T) {
	c := testConfig(t)
	c.Standby.Backend = "etcd"
	withConfig(t, c)

	_, err := initKV(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestSearchTimeout(t *testing.T) {
	withConfig(t, nil)
	ctx, cancel := searchTimeout(context.Background())
	_, ok := ctx.Deadline()
	assert.False(t, ok)
	cancel()

	withConfig(t, testConfig(t))
	ctx, cancel = searchTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(30*time.Second), deadline, 5*time.Second)
}

func TestResolveServices(t *testing.T) {
	cat := catalog.Default()

	ids, err := resolveServices(cat, []string{"2", " laudo completo ", "Vistoria de obra", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "2", "6"}, ids)

	_, err = resolveServices(cat, []string{"Pintura"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service")
}
