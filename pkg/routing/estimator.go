// Package routing estimates travel distance and time between two coordinates,
// preferring the Google Distance Matrix and falling back to great-circle
// distance.
package routing

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-match/internal/geo"
	"github.com/sells-group/inspection-match/internal/monitoring"
	"github.com/sells-group/inspection-match/pkg/google"
)

// Sources reported in Estimate.Source.
const (
	SourceGoogle    = "google"
	SourceHaversine = "haversine"
)

// UnknownText is shown when a value is not available.
const UnknownText = "N/A"

// Estimate is the travel estimate for one origin/destination pair.
type Estimate struct {
	DistanceKM      float64 `json:"distance_km"`
	DistanceText    string  `json:"distance_text"`
	TimeText        string  `json:"time_text"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	Source          string  `json:"source"`
}

// Config holds Distance Matrix settings for NewFromConfig.
type Config struct {
	APIKey    string
	BaseURL   string
	Language  string
	RateLimit float64
	Timeout   time.Duration
}

// Estimator computes travel estimates. It never fails.
type Estimator struct {
	client google.Client
}

// New creates an Estimator. A nil client always uses great-circle distance.
func New(client google.Client) *Estimator {
	return &Estimator{client: client}
}

// NewFromConfig creates an Estimator backed by the Distance Matrix when an
// API key is configured.
func NewFromConfig(cfg Config) *Estimator {
	if cfg.APIKey == "" {
		return New(nil)
	}
	opts := []google.Option{
		google.WithBaseURL(cfg.BaseURL),
		google.WithRateLimit(cfg.RateLimit),
	}
	if cfg.Language != "" {
		opts = append(opts, google.WithLanguage(cfg.Language))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, google.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	return New(google.NewClient(cfg.APIKey, opts...))
}

// HasProvider reports whether a routing provider is configured.
func (e *Estimator) HasProvider() bool {
	return e.client != nil
}

// Estimate returns the provider's driving estimate, or the great-circle
// estimate when no provider is configured or the provider fails.
func (e *Estimator) Estimate(ctx context.Context, origin, destination geo.Coordinates) Estimate {
	if e.client == nil {
		return Haversine(origin, destination)
	}

	est, err := e.route(ctx, origin, destination)
	if err != nil {
		zap.L().Debug("routing: provider failed, using haversine",
			zap.Stringer("origin", origin),
			zap.Stringer("destination", destination),
			zap.Error(err),
		)
		monitoring.RoutingEstimates.WithLabelValues(SourceHaversine, monitoring.OutcomeFallback).Inc()
		return Haversine(origin, destination)
	}
	monitoring.RoutingEstimates.WithLabelValues(SourceGoogle, monitoring.OutcomeHit).Inc()
	return est
}

func (e *Estimator) route(ctx context.Context, origin, destination geo.Coordinates) (Estimate, error) {
	resp, err := e.client.DistanceMatrix(ctx, origin, destination)
	if err != nil {
		return Estimate{}, err
	}
	if resp.Status != "OK" {
		return Estimate{}, eris.Errorf("routing: distance matrix status %s: %s", resp.Status, resp.ErrorMessage)
	}
	el, ok := resp.First()
	if !ok {
		return Estimate{}, eris.New("routing: distance matrix returned no elements")
	}
	if el.Status != "OK" {
		return Estimate{}, eris.Errorf("routing: element status %s", el.Status)
	}

	return Estimate{
		DistanceKM:      geo.RoundKM(float64(el.Distance.Value) / 1000),
		DistanceText:    el.Distance.Text,
		TimeText:        el.Duration.Text,
		DurationMinutes: int(math.Round(float64(el.Duration.Value) / 60)),
		Source:          SourceGoogle,
	}, nil
}

// Haversine returns the great-circle estimate, rounded to 0.1 km, with no
// travel time.
func Haversine(origin, destination geo.Coordinates) Estimate {
	km := geo.RoundKM(geo.HaversineKM(origin, destination))
	return Estimate{
		DistanceKM:   km,
		DistanceText: geo.FormatDistance(km),
		TimeText:     UnknownText,
		Source:       SourceHaversine,
	}
}
