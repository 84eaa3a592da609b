package shared

import (
	"fmt"
	"time"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Provider call errors. Every provider client maps transport and HTTP
	// failures onto exactly one of these.
	ErrRateLimited         = fmt.Errorf("local rate limit exceeded")
	ErrUpstreamRateLimited = fmt.Errorf("provider rate limited the request")
	ErrUpstreamTimeout     = fmt.Errorf("provider request timed out")
	ErrUpstreamDown        = fmt.Errorf("provider unavailable")
	ErrNotFound            = fmt.Errorf("not found upstream")
	ErrGone                = fmt.Errorf("no longer available upstream")
	ErrUnexpectedStatus    = fmt.Errorf("unexpected upstream status")

	// Task engine errors
	ErrUnknownTask   = fmt.Errorf("unknown task")
	ErrDuplicateTask = fmt.Errorf("task already registered")
	ErrInvalidInput  = fmt.Errorf("invalid input")

	// Queue and history errors
	ErrJobNotFound      = fmt.Errorf("job not found")
	ErrQueueUnavailable = fmt.Errorf("queue unavailable")
)

// RateLimitError reports a rejected consumption along with the exact wait
// after which the same call is admissible again.
type RateLimitError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q, retry after %s", e.Key, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// StatusError carries an upstream HTTP status that falls outside the closed
// taxonomy. It is fatal for the item that triggered it and surfaced verbatim.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// UpstreamRateLimitError is the provider-side 429, distinct from the local
// limiter. RetryAfter is zero when the provider did not send a Retry-After header.
type UpstreamRateLimitError struct {
	URL        string
	RetryAfter time.Duration
}

func (e *UpstreamRateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by %s, retry after %s", e.URL, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited by %s", e.URL)
}

func (e *UpstreamRateLimitError) Unwrap() error { return ErrUpstreamRateLimited }

// ValidationError reports a task input field that failed schema validation.
// Validation happens once, before a handler runs; a handler never sees raw input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input field %q: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }
