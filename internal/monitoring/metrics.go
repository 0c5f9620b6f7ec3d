// Package monitoring exposes Prometheus instruments for provider lookups and
// searches.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the counters below.
const (
	OutcomeHit      = "hit"
	OutcomeNoMatch  = "no_match"
	OutcomeError    = "error"
	OutcomeFallback = "fallback"
)

var (
	// GeocodeLookups counts provider lookups by provider and outcome.
	GeocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspection_geocode_lookups_total",
			Help: "Geocoding provider lookups by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// RoutingEstimates counts distance estimates by source (provider or haversine).
	RoutingEstimates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspection_routing_estimates_total",
			Help: "Distance estimates by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	// Searches counts finished searches by outcome.
	Searches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspection_searches_total",
			Help: "Searches by outcome",
		},
		[]string{"outcome"},
	)

	// SearchDuration observes end-to-end search latency.
	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inspection_search_duration_seconds",
			Help:    "End-to-end search latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	// StandbyEntries tracks the size of the standby collection after each write.
	StandbyEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inspection_standby_entries",
			Help: "Number of persisted standby entries",
		},
	)
)

// DependencyUp is 1 while the last probe of a dependency succeeded.
var DependencyUp = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "inspection_dependency_up",
		Help: "Whether the last health probe of a dependency succeeded",
	},
	[]string{"dependency"},
)
