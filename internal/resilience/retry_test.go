package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{
		Attempts:   3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestDoSuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(), "test", func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoSuccessAfterRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(), "test", func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("temporary"), 503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(), "test", func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"), 500)
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoNonTransientNoRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(), "test", func(_ context.Context) error {
		calls++
		return errors.New("permanent: bad request")
	})
	if err == nil {
		t.Fatal("expected the permanent error back")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoAuthErrorNoRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(), "test", func(_ context.Context) error {
		calls++
		return &AuthError{Provider: "cnpjws", Err: errors.New("invalid token")}
	})
	if !IsAuth(err) {
		t.Fatalf("expected an auth error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	err := Do(ctx, fastPolicy(), "test", func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("temporary"), 503)
	})
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoValPreservesValue(t *testing.T) {
	got, err := DoVal(context.Background(), fastPolicy(), "test", func(_ context.Context) (string, error) {
		return "payload", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "payload" {
		t.Errorf("expected payload, got %q", got)
	}
}

func TestDoValCustomRetryable(t *testing.T) {
	sentinel := errors.New("retry me")
	p := fastPolicy()
	p.Retryable = func(err error) bool { return errors.Is(err, sentinel) }

	var calls int
	_, err := DoVal(context.Background(), p, "test", func(_ context.Context) (int, error) {
		calls++
		return 0, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestBackoffCappedByMaxDelay(t *testing.T) {
	p := Policy{
		BaseDelay:  time.Second,
		MaxDelay:   2 * time.Second,
		Multiplier: 10.0,
	}.withDefaults()

	if d := p.backoff(5); d > 2*time.Second {
		t.Errorf("backoff %v exceeds cap", d)
	}
}
