// Package google is a thin client for the Google Distance Matrix API.
package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/inspection-match/internal/geo"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api"

// Client performs Google Distance Matrix operations.
type Client interface {
	DistanceMatrix(ctx context.Context, origin, destination geo.Coordinates) (*DistanceMatrixResponse, error)
}

// DistanceMatrixResponse is the response from the Distance Matrix API.
type DistanceMatrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	Rows         []Row  `json:"rows"`
}

// Row holds the elements for one origin.
type Row struct {
	Elements []Element `json:"elements"`
}

// Element is one origin/destination pair.
type Element struct {
	Status   string    `json:"status"`
	Distance TextValue `json:"distance"`
	Duration TextValue `json:"duration"`
}

// TextValue pairs a display text with its numeric value (meters or seconds).
type TextValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

// First returns the single element of a 1x1 matrix.
func (r *DistanceMatrixResponse) First() (Element, bool) {
	if r == nil || len(r.Rows) == 0 || len(r.Rows[0].Elements) == 0 {
		return Element{}, false
	}
	return r.Rows[0].Elements[0], true
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLanguage sets the language of the returned texts.
func WithLanguage(lang string) Option {
	return func(c *httpClient) {
		c.language = lang
	}
}

// WithRateLimit sets the requests-per-second ceiling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	language string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a Distance Matrix client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		language: "pt-BR",
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(10, 10),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DistanceMatrix requests driving distance and duration for a single pair.
// API-level statuses such as REQUEST_DENIED are returned in the response,
// not as errors.
func (c *httpClient) DistanceMatrix(ctx context.Context, origin, destination geo.Coordinates) (*DistanceMatrixResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "google: rate limit")
	}

	params := url.Values{
		"origins":      {origin.String()},
		"destinations": {destination.String()},
		"units":        {"metric"},
		"language":     {c.language},
		"key":          {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/distancematrix/json?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("google: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result DistanceMatrixResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal response")
	}

	return &result, nil
}
