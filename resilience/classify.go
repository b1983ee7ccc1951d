// Package resilience implements the retry policy and circuit breaker from
// spec §4.3, grounded on the teacher's llm/retry/backoff.go (exponential
// backoff with jitter) and llm/circuitbreaker/breaker.go (three-state
// machine guarded by a per-key mutex).
package resilience

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/docagents/substrate/types"
)

// Classify maps an error chain to an ErrorKind, root-cause-first, per
// spec §4.3's retryability predicate. Pure and exhaustively unit-tested.
func Classify(err error) types.ErrorKind {
	if err == nil {
		return types.ErrUnknown
	}

	var structured *types.Error
	if errors.As(err, &structured) {
		return structured.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.ErrProviderTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return types.ErrProviderTransient
	}

	msg := strings.ToLower(err.Error())

	for _, needle := range nonRetryableSubstrings {
		if strings.Contains(msg, needle) {
			return types.ErrProviderFatal
		}
	}

	for _, needle := range retryableSubstrings {
		if strings.Contains(msg, needle) {
			return types.ErrProviderTransient
		}
	}

	return types.ErrUnknown
}

var retryableSubstrings = []string{
	"timeout", "timed out", "connection reset", "connection refused",
	"i/o timeout", "eof", "429", "502", "503", "504",
	"rate limit", "throttle", "overloaded", "capacity", "acceleration limit",
}

var nonRetryableSubstrings = []string{
	"401", "403", "unauthorized", "forbidden", "invalid_api_key",
	"404", "malformed",
}

// IsRetryable reports whether Classify(err) warrants another attempt.
// Unknown classifications fail closed (not retryable) per spec §4.3 step 4.
func IsRetryable(err error) bool {
	return Classify(err) == types.ErrProviderTransient
}
