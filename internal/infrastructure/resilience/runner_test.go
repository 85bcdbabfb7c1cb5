package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	runner := NewRunner(Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BackoffGrowth:  2,
		BreakerEnabled: false,
	})

	attempts := 0
	errTransient := errors.New("transient")
	err := runner.Do(context.Background(), "search", func(err error) Verdict {
		return Verdict{Retry: errors.Is(err, errTransient), Trip: true}
	}, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	runner := NewRunner(Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BackoffGrowth:  2,
		BreakerEnabled: false,
	})

	attempts := 0
	errFatal := errors.New("bad request")
	err := runner.Do(context.Background(), "classify", func(error) Verdict {
		return Verdict{Retry: false, Trip: false}
	}, func(context.Context) error {
		attempts++
		return errFatal
	})
	if !errors.Is(err, errFatal) {
		t.Fatalf("expected wrapped fatal error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestDoOpensCircuitAfterFailures(t *testing.T) {
	runner := NewRunner(Policy{
		MaxAttempts:         1,
		InitialBackoff:      1 * time.Millisecond,
		MaxBackoff:          1 * time.Millisecond,
		BackoffGrowth:       2,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenFor:      50 * time.Millisecond,
		BreakerProbeCalls:   1,
	})

	errDown := errors.New("index offline")
	classify := func(error) Verdict { return Verdict{Retry: false, Trip: true} }

	for i := 0; i < 2; i++ {
		err := runner.Do(context.Background(), "search", classify, func(context.Context) error {
			return errDown
		})
		if !errors.Is(err, errDown) {
			t.Fatalf("iteration %d: expected index error, got %v", i, err)
		}
	}

	err := runner.Do(context.Background(), "search", classify, func(context.Context) error {
		t.Fatal("open circuit must not invoke the operation")
		return nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state, got %v", err)
	}
	if !IsCircuitOpen(err) {
		t.Fatal("IsCircuitOpen must recognize the open state")
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	runner := NewRunner(Policy{
		MaxAttempts:    5,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		BackoffGrowth:  2,
		BreakerEnabled: false,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errTransient := errors.New("transient")
	attempts := 0
	err := runner.Do(ctx, "embed", func(error) Verdict {
		return Verdict{Retry: true, Trip: true}
	}, func(context.Context) error {
		attempts++
		cancel()
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected last attempt error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("cancellation during backoff must stop retrying, got %d attempts", attempts)
	}
}

func TestBreakerStateIsPerOperation(t *testing.T) {
	runner := NewRunner(Policy{
		MaxAttempts:         1,
		InitialBackoff:      1 * time.Millisecond,
		MaxBackoff:          1 * time.Millisecond,
		BackoffGrowth:       2,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenFor:      time.Minute,
		BreakerProbeCalls:   1,
	})

	errDown := errors.New("down")
	classify := func(error) Verdict { return Verdict{Trip: true} }
	for i := 0; i < 2; i++ {
		_ = runner.Do(context.Background(), "search", classify, func(context.Context) error { return errDown })
	}
	if err := runner.Do(context.Background(), "search", classify, func(context.Context) error { return nil }); !IsCircuitOpen(err) {
		t.Fatalf("search breaker should be open, got %v", err)
	}
	if err := runner.Do(context.Background(), "generate", classify, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("generate breaker must be independent, got %v", err)
	}
}
