package analysis

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryer() Retryer {
	return Retryer{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetryer_NonRetryableSingleAttempt(t *testing.T) {
	calls := 0
	boom := errors.New("invalid API key")
	err := fastRetryer().Do(context.Background(), "test", func() error {
		calls++
		return boom
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if err != boom {
		t.Errorf("err = %v, want the original error unchanged", err)
	}
}

func TestRetryer_ExhaustsAndReturnsLastError(t *testing.T) {
	calls := 0
	last := &RateLimitedError{Provider: "codex", Detail: "quota"}
	err := fastRetryer().Do(context.Background(), "test", func() error {
		calls++
		return last
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if err != last {
		t.Errorf("err = %v, want the last error unchanged (no wrapping)", err)
	}
}

func TestRetryer_SucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	err := fastRetryer().Do(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return &RateLimitedError{Provider: "ollama", Detail: "overloaded"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryer_ContextCancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	r := Retryer{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, "test", func() error {
			calls++
			return &RateLimitedError{Provider: "codex", Detail: "capacity"}
		})
	}()
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected the last error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not stop on context cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestIsRetryable_Classification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &RateLimitedError{Provider: "codex", Detail: "quota"}, true},
		{"wrapped rate limited", &wrapErr{&RateLimitedError{Provider: "x"}}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"transport 429", &TransportError{Provider: "ollama", Status: 429}, true},
		{"transport 500", &TransportError{Provider: "ollama", Status: 500}, true},
		{"transport 502", &TransportError{Provider: "ollama", Status: 502}, true},
		{"transport 503", &TransportError{Provider: "ollama", Status: 503}, true},
		{"transport 400", &TransportError{Provider: "ollama", Status: 400}, false},
		{"transport 401", &TransportError{Provider: "ollama", Status: 401}, false},
		{"transport 403", &TransportError{Provider: "ollama", Status: 403}, false},
		{"subprocess exit", &TransportError{Provider: "claude-cli", Status: 0, Detail: "exit 1"}, false},
		{"config", &ConfigError{Msg: "unknown provider"}, false},
		{"parse", &ParseError{Provider: "codex", Err: errors.New("bad json")}, false},
		{"generic", errors.New("something else"), false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

type wrapErr struct{ inner error }

func (w *wrapErr) Error() string { return "wrapped: " + w.inner.Error() }
func (w *wrapErr) Unwrap() error { return w.inner }

func TestRateLimitText(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Rate limit exceeded, try again later", true},
		{"HTTP 429 Too Many Requests", true},
		{"You have exceeded your QUOTA for the month", true},
		{"model is overloaded", true},
		{"server at capacity, cooldown in effect", true},
		{"invalid API key", false},
		{"file not found", false},
	}
	for _, tc := range cases {
		if got := isRateLimitText(tc.text); got != tc.want {
			t.Errorf("isRateLimitText(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestClassifyTransport(t *testing.T) {
	err := classifyTransport("claude-cli", 0, "Rate limit exceeded, try again later")
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitedError, got %T", err)
	}

	err = classifyTransport("claude-cli", 0, "invalid API key")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T", err)
	}
}

func TestExcerptBound(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	if got := excerpt(string(long)); len(got) != errExcerptLimit {
		t.Errorf("excerpt length = %d, want %d", len(got), errExcerptLimit)
	}
}
