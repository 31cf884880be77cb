package analysis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
)

// errExcerptLimit caps how much raw provider error text we carry around.
const errExcerptLimit = 500

// ConfigError is a fatal configuration problem (unknown provider, missing
// prompt file). Never retried.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// RateLimitedError means the provider signaled rate limiting or capacity
// exhaustion on its error channel. Always retryable.
type RateLimitedError struct {
	Provider string
	Detail   string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s rate limited: %s", e.Provider, e.Detail)
}

// TransportError is a non-zero exit or non-2xx response that did not match the
// rate-limit vocabulary. Status is the HTTP status code when one exists, 0 for
// subprocess failures. Retried only for 429/500/502/503.
type TransportError struct {
	Provider string
	Status   int
	Detail   string
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s transport failed: status %d: %s", e.Provider, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s transport failed: %s", e.Provider, e.Detail)
}

// ParseError is a provider contract violation: malformed envelope or a
// structured payload that fails schema validation. Raw carries up to
// errExcerptLimit characters of the offending text. Never retried.
type ParseError struct {
	Provider string
	Raw      string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s response unparseable: %v (raw: %s)", e.Provider, e.Err, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

// rateLimitSignals is the fixed vocabulary of provider capacity complaints.
// Matched case-insensitively against stderr text and HTTP error bodies.
var rateLimitSignals = []string{
	"rate limit", "rate_limit", "429", "quota", "try again later",
	"overloaded", "capacity", "cooldown",
}

func isRateLimitText(s string) bool {
	lower := strings.ToLower(s)
	for _, sig := range rateLimitSignals {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// excerpt truncates raw error text to errExcerptLimit characters.
func excerpt(s string) string {
	if len(s) <= errExcerptLimit {
		return s
	}
	return s[:errExcerptLimit]
}

// classifyTransport turns raw provider error text into a RateLimitedError or
// a TransportError. status is the HTTP status code, or 0 for subprocesses.
func classifyTransport(provider string, status int, detail string) error {
	if isRateLimitText(detail) {
		return &RateLimitedError{Provider: provider, Detail: excerpt(detail)}
	}
	return &TransportError{Provider: provider, Status: status, Detail: excerpt(detail)}
}

// IsRetryable reports whether err belongs to the classified transient set:
// rate limits, timeouts, connection errors, and HTTP 429/500/502/503.
// Everything else — config errors, parse failures, client 4xx — propagates
// on first occurrence.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var op *net.OpError
	if errors.As(err, &op) {
		return true
	}
	var te *TransportError
	if errors.As(err, &te) {
		switch te.Status {
		case 429, 500, 502, 503:
			return true
		}
	}
	return false
}

// unknownProviderError builds the ConfigError for an unrecognized provider
// name, listing the valid keys so the operator can fix their config.
func unknownProviderError(name string, valid map[string]Provider) *ConfigError {
	keys := make([]string, 0, len(valid))
	for k := range valid {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &ConfigError{Msg: fmt.Sprintf(
		"unknown provider: %s (choose from: %s)", name, strings.Join(keys, ", "),
	)}
}
