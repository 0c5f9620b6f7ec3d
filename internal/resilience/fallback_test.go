package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func attempt(name string, val string, err error, calls *[]string) Attempt[string] {
	return Attempt[string]{
		Name: name,
		Run: func(_ context.Context) (string, error) {
			*calls = append(*calls, name)
			return val, err
		},
	}
}

func TestFirstSuccess_ReturnsFirstHit(t *testing.T) {
	var calls []string
	got, name, err := FirstSuccess(context.Background(), []Attempt[string]{
		attempt("a", "", ErrNoResult, &calls),
		attempt("b", "hit", nil, &calls),
		attempt("c", "late", nil, &calls),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hit" || name != "b" {
		t.Errorf("got %q from %q", got, name)
	}
	if len(calls) != 2 {
		t.Errorf("expected 2 attempts, got %v", calls)
	}
}

func TestFirstSuccess_AllNoResult(t *testing.T) {
	var calls []string
	_, _, err := FirstSuccess(context.Background(), []Attempt[string]{
		attempt("a", "", ErrNoResult, &calls),
		attempt("b", "", errors.New("transport"), &calls),
	})
	if !errors.Is(err, ErrNoResult) {
		t.Errorf("expected ErrNoResult, got %v", err)
	}
}

func TestFirstSuccess_AllErrored(t *testing.T) {
	var calls []string
	last := errors.New("second failure")
	_, _, err := FirstSuccess(context.Background(), []Attempt[string]{
		attempt("a", "", errors.New("first failure"), &calls),
		attempt("b", "", last, &calls),
	})
	if !errors.Is(err, last) {
		t.Errorf("expected last error, got %v", err)
	}
}

func TestFirstSuccess_Empty(t *testing.T) {
	_, _, err := FirstSuccess[string](context.Background(), nil)
	if !errors.Is(err, ErrNoResult) {
		t.Errorf("expected ErrNoResult, got %v", err)
	}
}

func TestFirstSuccess_WaitsBetweenAttempts(t *testing.T) {
	var calls []string
	attempts := []Attempt[string]{
		attempt("a", "", ErrNoResult, &calls),
		attempt("b", "ok", nil, &calls),
	}
	attempts[0].Wait = time.Hour // ignored for the first attempt
	attempts[1].Wait = 20 * time.Millisecond

	start := time.Now()
	_, _, err := FirstSuccess(context.Background(), attempts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond || elapsed > time.Second {
		t.Errorf("unexpected elapsed time %s", elapsed)
	}
}

func TestFirstSuccess_CancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	var calls []string
	attempts := []Attempt[string]{
		attempt("a", "", ErrNoResult, &calls),
		attempt("b", "ok", nil, &calls),
	}
	attempts[1].Wait = time.Minute

	_, _, err := FirstSuccess(ctx, attempts)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if len(calls) != 1 {
		t.Errorf("expected 1 attempt, got %v", calls)
	}
}
