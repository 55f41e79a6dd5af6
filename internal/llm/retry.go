package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"resume-workflow/internal/shared/telemetry"
)

// DefaultRetryDelay is the pause before the first retry; later retries double it.
const DefaultRetryDelay = 300 * time.Millisecond

type retryingClient struct {
	base     Client
	attempts int
	delay    time.Duration
}

// WithRetry wraps base so transient provider failures are retried up to
// attempts times in total. Non-transient errors return immediately.
func WithRetry(base Client, attempts int, delay time.Duration) Client {
	if base == nil {
		return nil
	}
	if attempts < 1 {
		attempts = 1
	}
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return retryingClient{base: base, attempts: attempts, delay: delay}
}

func (r retryingClient) Complete(ctx context.Context, prompt string) (string, error) {
	return r.do(ctx, "complete", func() (string, error) { return r.base.Complete(ctx, prompt) })
}

func (r retryingClient) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	return r.do(ctx, "complete_json", func() (string, error) { return r.base.CompleteJSON(ctx, prompt) })
}

func (r retryingClient) do(ctx context.Context, op string, call func() (string, error)) (string, error) {
	delay := r.delay
	var out string
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		out, err = call()
		if err == nil || attempt == r.attempts || ctx.Err() != nil || !ShouldRetry(err) {
			return out, err
		}
		telemetry.Warn("llm.retry", map[string]any{"op": op, "attempt": attempt, "error": err.Error()})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		delay *= 2
	}
	return out, err
}

// ShouldRetry reports whether err looks like a transient provider or network failure.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "http status 5"), strings.Contains(msg, "server_error"):
		return true
	case strings.Contains(msg, "http status 429"), strings.Contains(msg, "rate limit"):
		return true
	case strings.Contains(msg, "client.timeout"), strings.Contains(msg, "tls handshake timeout"):
		return true
	case strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection closed"),
		strings.Contains(msg, "broken pipe"),
		strings.HasSuffix(msg, "eof"):
		return true
	}
	return false
}
