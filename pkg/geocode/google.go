package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/inspection-match/internal/geo"
	"github.com/sells-group/inspection-match/internal/resilience"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results      []googleResult `json:"results"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithGoogleHTTPClient sets the HTTP client.
func WithGoogleHTTPClient(hc *http.Client) GoogleOption {
	return func(p *GoogleProvider) {
		p.httpClient = hc
	}
}

// WithGoogleRateLimit sets the requests-per-second ceiling.
func WithGoogleRateLimit(rps float64) GoogleOption {
	return func(p *GoogleProvider) {
		if rps > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithGoogleRegion sets the region bias and response language.
func WithGoogleRegion(region, language string) GoogleOption {
	return func(p *GoogleProvider) {
		p.region = region
		p.language = language
	}
}

// WithGoogleRetry sets the retry policy for transient failures.
func WithGoogleRetry(cfg resilience.RetryConfig) GoogleOption {
	return func(p *GoogleProvider) {
		p.retry = cfg
	}
}

// WithGoogleBreaker sets the circuit breaker config.
func WithGoogleBreaker(cfg resilience.BreakerConfig) GoogleOption {
	return func(p *GoogleProvider) {
		p.breaker = newLookupBreaker(cfg)
	}
}

// GoogleProvider geocodes via the Google Geocoding REST API. It is only
// available when an API key is configured.
type GoogleProvider struct {
	apiKey     string
	region     string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
	breaker    *resilience.Breaker
}

// NewGoogleProvider creates a GoogleProvider. An empty key yields a provider
// that reports itself unavailable.
func NewGoogleProvider(apiKey string, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		apiKey:     apiKey,
		region:     "br",
		language:   "pt-BR",
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		retry:      resilience.DefaultRetryConfig(),
		breaker:    newLookupBreaker(resilience.DefaultBreakerConfig()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// newLookupBreaker builds a breaker that ignores "no match" answers.
func newLookupBreaker(cfg resilience.BreakerConfig) *resilience.Breaker {
	cfg.ShouldTrip = func(err error) bool { return !errors.Is(err, ErrNoMatch) }
	return resilience.NewBreaker(cfg)
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Available implements Provider.
func (p *GoogleProvider) Available() bool { return p.apiKey != "" }

// Lookup implements Provider.
func (p *GoogleProvider) Lookup(ctx context.Context, query string) (geo.Coordinates, error) {
	if p.apiKey == "" {
		return geo.Coordinates{}, &ProviderError{Provider: p.Name(), Err: eris.New("api key not configured")}
	}

	retry := p.retry
	retry.OnRetry = resilience.RetryLogger(p.Name())
	coords, err := resilience.ExecuteVal(ctx, p.breaker, func(ctx context.Context) (geo.Coordinates, error) {
		return resilience.DoVal(ctx, retry, func(ctx context.Context) (geo.Coordinates, error) {
			return p.lookupOnce(ctx, query)
		})
	})
	return coords, asProviderError(p.Name(), err)
}

func (p *GoogleProvider) lookupOnce(ctx context.Context, query string) (geo.Coordinates, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return geo.Coordinates{}, eris.Wrap(err, "google rate limit")
	}

	params := url.Values{
		"address":  {query},
		"key":      {p.apiKey},
		"region":   {p.region},
		"language": {p.language},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleGeocodeURL+"?"+params.Encode(), nil)
	if err != nil {
		return geo.Coordinates{}, eris.Wrap(err, "google build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return geo.Coordinates{}, &ProviderError{Provider: p.Name(), Err: eris.Wrap(err, "google request")}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("google returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return geo.Coordinates{}, &ProviderError{Provider: p.Name(), Err: resilience.NewTransientError(statusErr, resp.StatusCode)}
		}
		return geo.Coordinates{}, &ProviderError{Provider: p.Name(), Err: statusErr}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return geo.Coordinates{}, &ProviderError{Provider: p.Name(), Err: eris.Wrap(err, "google read body")}
	}

	var gr googleGeocodeResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return geo.Coordinates{}, &ProviderError{Provider: p.Name(), Err: eris.Wrap(err, "google parse response")}
	}

	switch gr.Status {
	case "OK":
		if len(gr.Results) == 0 {
			return geo.Coordinates{}, ErrNoMatch
		}
		loc := gr.Results[0].Geometry.Location
		zap.L().Debug("geocode: google match",
			zap.String("query", query),
			zap.String("formatted_address", gr.Results[0].FormattedAddress),
		)
		return geo.Coordinates{Lat: loc.Lat, Lng: loc.Lng}, nil
	case "ZERO_RESULTS":
		return geo.Coordinates{}, ErrNoMatch
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return geo.Coordinates{}, &ProviderError{
			Provider: p.Name(),
			Err:      resilience.NewTransientError(eris.Errorf("google status %s", gr.Status), 0),
		}
	default:
		return geo.Coordinates{}, &ProviderError{
			Provider: p.Name(),
			Err:      eris.Errorf("google status %s: %s", gr.Status, gr.ErrorMessage),
		}
	}
}
