package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior with exponential backoff and jitter.
type Policy struct {
	// Attempts is the total number of tries including the first. 1 = no retry.
	Attempts int
	// BaseDelay is the backoff before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration
	// Multiplier scales the backoff after each attempt.
	Multiplier float64
	// Jitter is the random fraction applied to each delay (0.25 = ±25%).
	Jitter float64
	// Retryable overrides the default IsTransient check when non-nil.
	Retryable func(error) bool
}

// DefaultPolicy returns the retry policy used for external provider calls.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.25,
	}
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// Do runs fn under the policy, retrying transient failures. Context
// cancellation stops retries immediately. op names the operation for logs.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal runs fn under the policy and preserves its return value.
func DoVal[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if !retryable(lastErr) {
			return zero, lastErr
		}
		if attempt >= p.Attempts-1 {
			break
		}

		delay := p.backoff(attempt)
		zap.L().Warn("retrying operation",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func (p Policy) backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		span := delay * p.Jitter
		delay += (rand.Float64()*2 - 1) * span
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
