package geocode

import (
	"context"
	"errors"
	"fmt"

	"github.com/sells-group/inspection-match/internal/geo"
	"github.com/sells-group/inspection-match/internal/resilience"
)

// ErrNoMatch is returned by a Provider that answered but found nothing.
var ErrNoMatch = resilience.ErrNoResult

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	// Available reports whether the provider is configured for use.
	Available() bool
	// Lookup resolves one query string. It returns ErrNoMatch when the
	// provider found nothing and a *ProviderError on transport or auth failure.
	Lookup(ctx context.Context, query string) (geo.Coordinates, error)
}

// ProviderError is a transport, quota or authorization failure of a provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("geocode: %s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// asProviderError leaves nil, ErrNoMatch and existing ProviderErrors alone and
// wraps anything else.
func asProviderError(provider string, err error) error {
	if err == nil || errors.Is(err, ErrNoMatch) {
		return err
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Err: err}
}
