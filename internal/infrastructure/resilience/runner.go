package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Verdict tells the runner how to treat one failure: whether another attempt
// may help and whether the breaker should count it.
type Verdict struct {
	Retry bool
	Trip  bool
}

type Classifier func(err error) Verdict

// Runner executes outbound calls with bounded retries behind a per-operation
// circuit breaker. One Runner is shared per dependency so breaker state spans
// all callers of that dependency.
type Runner struct {
	policy Policy

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewRunner(policy Policy) *Runner {
	return &Runner{
		policy:   policy.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (r *Runner) Do(ctx context.Context, operation string, classify Classifier, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = func(error) Verdict { return Verdict{Trip: true} }
	}

	if !r.policy.BreakerEnabled {
		return r.retry(ctx, op, classify, fn)
	}

	breaker := r.breaker(op, classify)
	_, err := breaker.Execute(func() (any, error) {
		return nil, r.retry(ctx, op, classify, fn)
	})
	return err
}

func (r *Runner) retry(ctx context.Context, operation string, classify Classifier, fn func(context.Context) error) error {
	backoff := r.policy.InitialBackoff

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		verdict := classify(err)
		if !verdict.Retry || attempt == r.policy.MaxAttempts {
			return err
		}

		wait := backoff
		if wait > r.policy.MaxBackoff {
			wait = r.policy.MaxBackoff
		}
		slog.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", r.policy.MaxAttempts,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", err,
		)

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}

		backoff = time.Duration(float64(backoff) * r.policy.BackoffGrowth)
		if backoff > r.policy.MaxBackoff {
			backoff = r.policy.MaxBackoff
		}
	}

	return nil
}

func (r *Runner) breaker(operation string, classify Classifier) *gobreaker.CircuitBreaker[any] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if breaker, ok := r.breakers[operation]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: r.policy.BreakerProbeCalls,
		Timeout:     r.policy.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < r.policy.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= r.policy.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !classify(err).Trip
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	r.breakers[operation] = breaker
	return breaker
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
