package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNoResult is returned by an Attempt that completed normally but had
// nothing to offer, as opposed to one that failed.
var ErrNoResult = eris.New("no result")

// Attempt is one strategy in an ordered fallback chain.
type Attempt[T any] struct {
	Name string
	// Wait is slept before Run, but only when an earlier attempt already ran.
	Wait time.Duration
	Run  func(ctx context.Context) (T, error)
}

// FirstSuccess runs attempts in order and returns the first value produced
// without error, along with the name of the attempt that produced it.
//
// When every attempt fails the result is ErrNoResult if at least one attempt
// reported ErrNoResult (or there were no attempts), otherwise the last error.
func FirstSuccess[T any](ctx context.Context, attempts []Attempt[T]) (T, string, error) {
	var zero T
	var lastErr error
	sawNoResult := false

	for i, a := range attempts {
		if i > 0 && a.Wait > 0 && !sleep(ctx, a.Wait) {
			return zero, "", eris.Wrap(ctx.Err(), "fallback: interrupted")
		}
		if err := ctx.Err(); err != nil {
			return zero, "", eris.Wrap(err, "fallback: interrupted")
		}

		val, err := a.Run(ctx)
		if err == nil {
			return val, a.Name, nil
		}
		if errors.Is(err, ErrNoResult) {
			sawNoResult = true
			continue
		}
		lastErr = err
	}

	if sawNoResult || lastErr == nil {
		return zero, "", ErrNoResult
	}
	return zero, "", lastErr
}
