package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks an error as safe to retry (network timeout, 429, 5xx).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// AuthError marks a provider credential rejection. Never retried; the owning
// task fails immediately.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return "auth rejected by " + e.Provider + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

// ErrNoMatch signals a provider returned no usable candidate. Not a failure:
// the lead stays in its current status for a future pass.
var ErrNoMatch = errors.New("no usable match")

// ErrOptedOut signals a compliance skip: the target is on the opt-out
// registry or a blacklist. Distinct from failure; the task completes with a
// skipped outcome.
var ErrOptedOut = errors.New("target opted out")

// IsAuth reports whether the error chain contains an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsTransient reports whether err is retryable: an explicit TransientError,
// a network timeout, or a connection-level failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Wrapped errors from HTTP clients lose their type; fall back to
	// message heuristics.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether an HTTP status is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
