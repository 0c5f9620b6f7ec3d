// Package geocode resolves free-form Brazilian addresses to coordinates using
// Google Geocoding (primary, key-gated) and OpenStreetMap Nominatim (fallback).
package geocode

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-match/internal/geo"
	"github.com/sells-group/inspection-match/internal/monitoring"
	"github.com/sells-group/inspection-match/internal/resilience"
)

// ErrNotFound is returned when no provider could locate the address.
var ErrNotFound = eris.New("geocode: address not found")

// Config holds provider settings for NewFromConfig.
type Config struct {
	GoogleAPIKey       string
	GoogleRateLimit    float64
	NominatimURL       string
	NominatimUserAgent string
	NominatimRateLimit float64
	FallbackDelay      time.Duration
	Country            string
	Retry              resilience.RetryConfig
	Breaker            resilience.BreakerConfig
}

// Option configures the Geocoder.
type Option func(*Geocoder)

// WithFallbackDelay sets the pause between consecutive fallback variants.
func WithFallbackDelay(d time.Duration) Option {
	return func(g *Geocoder) {
		if d >= 0 {
			g.fallbackDelay = d
		}
	}
}

// WithCountry sets the country suffix stripped from and appended to fallback
// queries.
func WithCountry(country string) Option {
	return func(g *Geocoder) {
		g.countryName = country
	}
}

// Geocoder tries the primary provider once with the normalized address, then
// the fallback provider with each address variant in turn.
type Geocoder struct {
	primary       Provider
	fallback      Provider
	fallbackDelay time.Duration
	countryName   string
	country       countrySuffix
}

// New creates a Geocoder. Either provider may be nil.
func New(primary, fallback Provider, opts ...Option) *Geocoder {
	g := &Geocoder{
		primary:       primary,
		fallback:      fallback,
		fallbackDelay: 500 * time.Millisecond,
		countryName:   "Brasil",
	}
	for _, opt := range opts {
		opt(g)
	}
	g.country = newCountrySuffix(g.countryName)
	return g
}

// NewFromConfig wires the Google and Nominatim providers from cfg.
func NewFromConfig(cfg Config) *Geocoder {
	google := NewGoogleProvider(cfg.GoogleAPIKey,
		WithGoogleRateLimit(cfg.GoogleRateLimit),
		WithGoogleRetry(cfg.Retry),
		WithGoogleBreaker(cfg.Breaker),
	)
	nominatim := NewNominatimProvider(
		WithNominatimBaseURL(cfg.NominatimURL),
		WithNominatimUserAgent(cfg.NominatimUserAgent),
		WithNominatimRateLimit(cfg.NominatimRateLimit),
	)

	var opts []Option
	if cfg.FallbackDelay > 0 {
		opts = append(opts, WithFallbackDelay(cfg.FallbackDelay))
	}
	if cfg.Country != "" {
		opts = append(opts, WithCountry(cfg.Country))
	}
	return New(google, nominatim, opts...)
}

// Resolve returns the coordinates of address. It returns ErrNotFound when no
// provider located it, or the last *ProviderError when every provider failed
// without ever answering.
func (g *Geocoder) Resolve(ctx context.Context, address string) (geo.Coordinates, error) {
	query := Normalize(address)
	if query == "" {
		return geo.Coordinates{}, ErrNotFound
	}

	coords, via, err := resilience.FirstSuccess(ctx, g.attempts(query))
	if err != nil {
		if errors.Is(err, resilience.ErrNoResult) {
			zap.L().Debug("geocode: address not found", zap.String("address", query))
			return geo.Coordinates{}, ErrNotFound
		}
		return geo.Coordinates{}, err
	}

	zap.L().Debug("geocode: resolved",
		zap.String("address", query),
		zap.String("via", via),
		zap.Stringer("coordinates", coords),
	)
	return coords, nil
}

func (g *Geocoder) attempts(query string) []resilience.Attempt[geo.Coordinates] {
	var attempts []resilience.Attempt[geo.Coordinates]

	if g.primary != nil && g.primary.Available() {
		attempts = append(attempts, g.attempt(g.primary, query, 0))
	}
	if g.fallback != nil && g.fallback.Available() {
		for i, variant := range fallbackVariants(query, g.country) {
			wait := g.fallbackDelay
			if i == 0 {
				wait = 0
			}
			attempts = append(attempts, g.attempt(g.fallback, variant, wait))
		}
	}
	return attempts
}

func (g *Geocoder) attempt(p Provider, query string, wait time.Duration) resilience.Attempt[geo.Coordinates] {
	return resilience.Attempt[geo.Coordinates]{
		Name: p.Name(),
		Wait: wait,
		Run: func(ctx context.Context) (geo.Coordinates, error) {
			coords, err := p.Lookup(ctx, query)
			switch {
			case err == nil:
				monitoring.GeocodeLookups.WithLabelValues(p.Name(), monitoring.OutcomeHit).Inc()
			case errors.Is(err, ErrNoMatch):
				monitoring.GeocodeLookups.WithLabelValues(p.Name(), monitoring.OutcomeNoMatch).Inc()
			default:
				monitoring.GeocodeLookups.WithLabelValues(p.Name(), monitoring.OutcomeError).Inc()
				zap.L().Warn("geocode: provider failed, falling back",
					zap.String("provider", p.Name()),
					zap.String("query", query),
					zap.Error(err),
				)
			}
			return coords, err
		},
	}
}
