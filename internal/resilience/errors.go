// Package resilience provides error classification, a retry executor with
// exponential backoff and jitter, and the pacing helpers the source adapters
// use to keep their request rate unremarkable.
package resilience

import (
	"context"
	"errors"
	"strings"

	"github.com/helixir/researcher-lookup-service/internal/domain"
)

// ErrorCategory classifies errors into categories that determine whether a
// failed operation is worth retrying.
type ErrorCategory int

const (
	// Transient errors are temporary failures that should be retried with
	// exponential backoff (e.g. network timeouts, rate limits, blocked pages).
	Transient ErrorCategory = iota

	// Permanent errors are non-recoverable and retrying only wastes requests.
	Permanent
)

// String returns a human-readable name for the category.
func (c ErrorCategory) String() string {
	switch c {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// transientSubstrings are error message substrings that indicate a transient failure
// when the error is not already classified by a structured error type.
var transientSubstrings = []string{
	"timeout",
	"network",
	"connection refused",
	"connection reset",
	"rate limit",
	"too many requests",
	"service unavailable",
	"temporary",
	"deadline exceeded",
	"i/o timeout",
	"eof",
}

// permanentSubstrings indicate a permanent failure.
// "unauthorized" rather than "auth" so "author" does not match.
var permanentSubstrings = []string{
	"unauthorized",
	"invalid api key",
	"forbidden",
	"bad request",
	"not found",
	"validation",
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// MarkPermanent wraps err so that Executor stops retrying and returns err as is.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Classify inspects err and returns its ErrorCategory.
//
// Classification priority:
//  1. Nil errors — Permanent (callers should not retry nil)
//  2. Errors wrapped with MarkPermanent, and context cancellation — Permanent
//  3. Domain sentinel errors — ErrRateLimited, ErrMissingCredential, etc.
//  4. Error message substring matching (transient checked first for fail-safe bias)
//  5. Default: Transient (safer to retry than to fail)
func Classify(err error) ErrorCategory {
	if err == nil {
		return Permanent
	}

	var perm *permanentError
	if errors.As(err, &perm) || errors.Is(err, context.Canceled) {
		return Permanent
	}

	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrServiceUnavailable) ||
		errors.Is(err, domain.ErrLikelyBlocked) || errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrMissingCredential) {
		return Permanent
	}

	msg := strings.ToLower(err.Error())
	for _, sub := range transientSubstrings {
		if strings.Contains(msg, sub) {
			return Transient
		}
	}
	for _, sub := range permanentSubstrings {
		if strings.Contains(msg, sub) {
			return Permanent
		}
	}

	return Transient
}
