package geocode

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/sells-group/inspection-match/internal/geo"
)

// newTestLimiter creates a rate limiter that effectively does not limit for tests.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// newRewriteClient creates an HTTP client that rewrites requests to a test server URL.
// All requests matching the target prefix are redirected to the test server.
func newRewriteClient(testServerURL, targetPrefix string) *http.Client {
	return &http.Client{
		Transport: &rewriteTransport{
			base:         http.DefaultTransport,
			testServer:   testServerURL,
			targetPrefix: targetPrefix,
		},
	}
}

type rewriteTransport struct {
	base         http.RoundTripper
	testServer   string
	targetPrefix string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	if strings.HasPrefix(origURL, t.targetPrefix) {
		suffix := origURL[len(t.targetPrefix):]
		newURL := t.testServer + suffix
		newReq := req.Clone(req.Context())
		parsed, err := req.URL.Parse(newURL)
		if err != nil {
			return nil, err
		}
		newReq.URL = parsed
		newReq.Host = parsed.Host
		return t.base.RoundTrip(newReq)
	}
	return t.base.RoundTrip(req)
}

// stubProvider answers from a fixed table of queries. Unknown queries get
// the default error, or ErrNoMatch when none is set.
type stubProvider struct {
	name       string
	available  bool
	answers    map[string]geo.Coordinates
	defaultErr error

	mu    sync.Mutex
	calls []string
}

func newStubProvider(name string) *stubProvider {
	return &stubProvider{name: name, available: true, answers: map[string]geo.Coordinates{}}
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Available() bool { return s.available }

func (s *stubProvider) Lookup(_ context.Context, query string) (geo.Coordinates, error) {
	s.mu.Lock()
	s.calls = append(s.calls, query)
	s.mu.Unlock()

	if c, ok := s.answers[query]; ok {
		return c, nil
	}
	if s.defaultErr != nil {
		return geo.Coordinates{}, s.defaultErr
	}
	return geo.Coordinates{}, ErrNoMatch
}

func (s *stubProvider) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}
