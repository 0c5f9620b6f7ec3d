package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/inspection-match/internal/geo"
	"github.com/sells-group/inspection-match/internal/resilience"
)

const nominatimSearchURL = "https://nominatim.openstreetmap.org/search"

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     *struct {
		City  string `json:"city"`
		Town  string `json:"town"`
		State string `json:"state"`
	} `json:"address"`
}

// hasLocality reports whether the place carries city, town or state details.
func (p nominatimPlace) hasLocality() bool {
	return p.Address != nil && (p.Address.City != "" || p.Address.Town != "" || p.Address.State != "")
}

// NominatimOption configures a NominatimProvider.
type NominatimOption func(*NominatimProvider)

// WithNominatimHTTPClient sets the HTTP client.
func WithNominatimHTTPClient(hc *http.Client) NominatimOption {
	return func(p *NominatimProvider) {
		p.httpClient = hc
	}
}

// WithNominatimRateLimit sets the requests-per-second ceiling.
func WithNominatimRateLimit(rps float64) NominatimOption {
	return func(p *NominatimProvider) {
		if rps > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithNominatimUserAgent sets the User-Agent, which the public instance requires.
func WithNominatimUserAgent(ua string) NominatimOption {
	return func(p *NominatimProvider) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// WithNominatimCountryCodes restricts results to the given ISO country codes.
func WithNominatimCountryCodes(codes string) NominatimOption {
	return func(p *NominatimProvider) {
		p.countryCodes = codes
	}
}

// WithNominatimBaseURL points the provider at a self-hosted instance.
func WithNominatimBaseURL(u string) NominatimOption {
	return func(p *NominatimProvider) {
		if u != "" {
			p.baseURL = u
		}
	}
}

// NominatimProvider geocodes via OpenStreetMap Nominatim. It needs no
// credentials and is always available.
type NominatimProvider struct {
	baseURL        string
	userAgent      string
	acceptLanguage string
	countryCodes   string
	limit          int
	httpClient     *http.Client
	limiter        *rate.Limiter
}

// NewNominatimProvider creates a NominatimProvider with public-instance defaults.
func NewNominatimProvider(opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		baseURL:        nominatimSearchURL,
		userAgent:      "InspectionMatch/1.0",
		acceptLanguage: "pt-BR,pt,en",
		countryCodes:   "br",
		limit:          3,
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		limiter:        rate.NewLimiter(2, 2),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Available implements Provider.
func (p *NominatimProvider) Available() bool { return true }

// Lookup implements Provider. Among the returned places the first one with
// locality details wins, otherwise the first place.
func (p *NominatimProvider) Lookup(ctx context.Context, query string) (geo.Coordinates, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return geo.Coordinates{}, eris.Wrap(err, "nominatim rate limit")
	}

	params := url.Values{
		"format":         {"json"},
		"q":              {query},
		"limit":          {strconv.Itoa(p.limit)},
		"addressdetails": {"1"},
	}
	if p.countryCodes != "" {
		params.Set("countrycodes", p.countryCodes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return geo.Coordinates{}, eris.Wrap(err, "nominatim build request")
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept-Language", p.acceptLanguage)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return geo.Coordinates{}, &ProviderError{Provider: p.Name(), Err: eris.Wrap(err, "nominatim request")}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("nominatim returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			statusErr = resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return geo.Coordinates{}, &ProviderError{Provider: p.Name(), Err: statusErr}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return geo.Coordinates{}, &ProviderError{Provider: p.Name(), Err: eris.Wrap(err, "nominatim read body")}
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return geo.Coordinates{}, &ProviderError{Provider: p.Name(), Err: eris.Wrap(err, "nominatim parse response")}
	}
	if len(places) == 0 {
		return geo.Coordinates{}, ErrNoMatch
	}

	best := places[0]
	for _, place := range places {
		if place.hasLocality() {
			best = place
			break
		}
	}

	lat, latErr := strconv.ParseFloat(best.Lat, 64)
	lng, lngErr := strconv.ParseFloat(best.Lon, 64)
	if latErr != nil || lngErr != nil {
		return geo.Coordinates{}, &ProviderError{
			Provider: p.Name(),
			Err:      eris.Errorf("nominatim returned malformed coordinates %q,%q", best.Lat, best.Lon),
		}
	}

	zap.L().Debug("geocode: nominatim match",
		zap.String("query", query),
		zap.String("display_name", best.DisplayName),
	)
	return geo.Coordinates{Lat: lat, Lng: lng}, nil
}
