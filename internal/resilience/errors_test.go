package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", NewTransientError(errors.New("503"), 503), true},
		{"wrapped transient", fmt.Errorf("call failed: %w", NewTransientError(errors.New("429"), 429)), true},
		{"net timeout", &net.OpError{Op: "dial", Err: timeoutError{}}, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"message heuristic", errors.New("read: connection reset by peer"), true},
		{"plain error", errors.New("invalid payload"), false},
		{"auth error", &AuthError{Provider: "places", Err: errors.New("forbidden")}, false},
		{"no match", ErrNoMatch, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsAuth(t *testing.T) {
	ae := &AuthError{Provider: "cnpjws", Err: errors.New("invalid token")}
	if !IsAuth(ae) {
		t.Error("expected auth error to be detected")
	}
	if !IsAuth(fmt.Errorf("lookup: %w", ae)) {
		t.Error("expected wrapped auth error to be detected")
	}
	if IsAuth(errors.New("invalid token")) {
		t.Error("plain error misreported as auth")
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("status %d should be transient", code)
		}
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("status %d should not be transient", code)
		}
	}
}

func TestTransientErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	te := NewTransientError(base, 500)
	if !errors.Is(te, base) {
		t.Error("expected Unwrap to expose the base error")
	}
	if te.StatusCode != 500 {
		t.Errorf("expected status 500, got %d", te.StatusCode)
	}
}
