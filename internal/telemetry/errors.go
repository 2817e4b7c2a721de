package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAccountNotFound is returned when the remote API no longer knows
// the account (unlinked or deleted upstream).
var ErrAccountNotFound = errors.New("telemetry: account not found")

// RateLimitError signals that the remote API is throttling the account.
// The scheduler absorbs it into a backoff rather than surfacing it.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("telemetry: rate limited, retry after %s", e.RetryAfter)
}

// IsRateLimited reports whether err is (or wraps) a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// RetryAfter extracts the throttle hint from a rate-limit error,
// falling back to the given default.
func RetryAfter(err error, fallback time.Duration) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	return fallback
}

// APIError is any other structured failure from the remote API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telemetry: remote API error %d: %s", e.StatusCode, e.Message)
}

// LooksLikeExpiredAuth heuristically classifies an error as an expired
// access token. The remote API has no structured "expired" code, so the
// poller matches status codes and the message phrasing observed in the
// wild, and pays for a false positive with one wasted refresh at most.
func LooksLikeExpiredAuth(err error) bool {
	if err == nil {
		return false
	}
	var api *APIError
	if errors.As(err, &api) {
		if api.StatusCode == 401 {
			return true
		}
		msg := strings.ToLower(api.Message)
		if api.StatusCode == 403 && (strings.Contains(msg, "token") || strings.Contains(msg, "expired")) {
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unauthenticated") ||
		strings.Contains(msg, "token expired") ||
		strings.Contains(msg, "session expired")
}
