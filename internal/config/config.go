package config

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Standby    StandbyConfig    `yaml:"standby" mapstructure:"standby"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Nominatim  NominatimConfig  `yaml:"nominatim" mapstructure:"nominatim"`
	Routing    RoutingConfig    `yaml:"routing" mapstructure:"routing"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
}

// StoreConfig configures the roster, catalog and history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // postgres or sqlite
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// StandbyConfig configures where standby entries are persisted.
type StandbyConfig struct {
	Backend    string `yaml:"backend" mapstructure:"backend"` // memory, redis or sqlite
	Key        string `yaml:"key" mapstructure:"key"`
	RedisURL   string `yaml:"redis_url" mapstructure:"redis_url"`
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// GoogleConfig holds Google Maps Platform settings. An empty key disables
// both Google geocoding and the Distance Matrix.
type GoogleConfig struct {
	APIKey    string  `yaml:"api_key" mapstructure:"api_key"`
	Region    string  `yaml:"region" mapstructure:"region"`
	Language  string  `yaml:"language" mapstructure:"language"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// NominatimConfig holds OpenStreetMap Nominatim settings.
type NominatimConfig struct {
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent       string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit       float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	FallbackDelayMs int     `yaml:"fallback_delay_ms" mapstructure:"fallback_delay_ms"`
	Country         string  `yaml:"country" mapstructure:"country"`
}

// RoutingConfig configures the Distance Matrix client.
type RoutingConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MatchConfig configures the search fan-out.
type MatchConfig struct {
	GeocodeConcurrency  int `yaml:"geocode_concurrency" mapstructure:"geocode_concurrency"`
	EstimateConcurrency int `yaml:"estimate_concurrency" mapstructure:"estimate_concurrency"`
	SearchTimeoutSecs   int `yaml:"search_timeout_secs" mapstructure:"search_timeout_secs"`
}

// ScoringConfig holds the ranking weights and priority regions.
type ScoringConfig struct {
	Baseline               float64          `yaml:"baseline" mapstructure:"baseline"`
	HomeState              string           `yaml:"home_state" mapstructure:"home_state"`
	PriorityLoadWeight     float64          `yaml:"priority_load_weight" mapstructure:"priority_load_weight"`
	PriorityLoadCeiling    float64          `yaml:"priority_load_ceiling" mapstructure:"priority_load_ceiling"`
	PriorityDistanceWeight float64          `yaml:"priority_distance_weight" mapstructure:"priority_distance_weight"`
	DistanceWeight         float64          `yaml:"distance_weight" mapstructure:"distance_weight"`
	LoadWeight             float64          `yaml:"load_weight" mapstructure:"load_weight"`
	PriorityRegions        []PriorityRegion `yaml:"priority_regions" mapstructure:"priority_regions"`
}

// PriorityRegion is a municipality whose requests favor the least loaded
// nearby companies.
type PriorityRegion struct {
	Name    string   `yaml:"name" mapstructure:"name"`
	State   string   `yaml:"state" mapstructure:"state"`
	Aliases []string `yaml:"aliases" mapstructure:"aliases"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	HealthIntervalSecs int      `yaml:"health_interval_secs" mapstructure:"health_interval_secs"` // store and standby probe period
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ResilienceConfig configures retries and circuit breaking of provider calls.
type ResilienceConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; existing environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "inspection.db")
	v.SetDefault("standby.backend", "sqlite")
	v.SetDefault("standby.key", "inspection:standby")
	v.SetDefault("standby.redis_url", "redis://localhost:6379/0")
	v.SetDefault("standby.sqlite_path", "standby.db")
	v.SetDefault("google.api_key", "")
	v.SetDefault("google.region", "br")
	v.SetDefault("google.language", "pt-BR")
	v.SetDefault("google.rate_limit", 10)
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("nominatim.user_agent", "InspectionMatch/1.0")
	v.SetDefault("nominatim.rate_limit", 2)
	v.SetDefault("nominatim.fallback_delay_ms", 500)
	v.SetDefault("nominatim.country", "Brasil")
	v.SetDefault("routing.enabled", true)
	v.SetDefault("routing.base_url", "https://maps.googleapis.com/maps/api")
	v.SetDefault("routing.rate_limit", 10)
	v.SetDefault("routing.timeout_secs", 10)
	v.SetDefault("match.geocode_concurrency", 5)
	v.SetDefault("match.estimate_concurrency", 10)
	v.SetDefault("match.search_timeout_secs", 60)
	v.SetDefault("scoring.baseline", 100)
	v.SetDefault("scoring.home_state", "MG")
	v.SetDefault("scoring.priority_load_weight", 5)
	v.SetDefault("scoring.priority_load_ceiling", 100)
	v.SetDefault("scoring.priority_distance_weight", 2)
	v.SetDefault("scoring.distance_weight", 0.5)
	v.SetDefault("scoring.load_weight", 3)
	v.SetDefault("scoring.priority_regions", []map[string]any{
		{
			"name":    "Belo Horizonte",
			"state":   "MG",
			"aliases": []string{"belo horizonte", "bh", "belo-horizonte"},
		},
	})
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.health_interval_secs", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("resilience.max_attempts", 2)
	v.SetDefault("resilience.initial_backoff_ms", 250)
	v.SetDefault("resilience.max_backoff_ms", 5000)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Google.APIKey == "" {
		cfg.Google.APIKey = os.Getenv("GOOGLE_MAPS_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown backends and out-of-range values.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"postgres", "sqlite"}, c.Store.Driver) {
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if !slices.Contains([]string{"memory", "redis", "sqlite"}, c.Standby.Backend) {
		return eris.Errorf("config: unknown standby.backend %q", c.Standby.Backend)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Match.GeocodeConcurrency < 1 || c.Match.EstimateConcurrency < 1 {
		return eris.New("config: match concurrency must be at least 1")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
