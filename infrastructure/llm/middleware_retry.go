package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig tunes RetryMiddleware.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig returns three retries starting at 500ms, capped at 10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}
}

// retryLLM implements automatic retry logic with exponential backoff.
// Only errors classified as retryable are retried.
type retryLLM struct {
	next CoreLLM
	cfg  RetryConfig
}

// RetryMiddleware creates middleware that retries transient provider
// failures with exponential backoff and jitter.
func RetryMiddleware(cfg RetryConfig) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{next: next, cfg: cfg}
	}
}

// DoRequest executes the request with automatic retry logic.
// It stops early on an open circuit, a non-retryable error or a done
// context.
func (r *retryLLM) DoRequest(ctx context.Context, req Request) (Response, error) {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		resp, err := r.next.DoRequest(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil || attempt == r.cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(r.calculateDelay(attempt)):
		}
	}

	return Response{}, fmt.Errorf("request failed after retries: %w", lastErr)
}

// retryable reports whether err is worth another attempt.
func retryable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.IsRetryable()
	}
	return false
}

func (r *retryLLM) calculateDelay(attempt int) time.Duration {
	attempt = min(max(attempt, 0), 30)
	// #nosec G115 - attempt is bounded between 0 and 30
	delay := r.cfg.BaseDelay * time.Duration(1<<uint(attempt))

	// Jitter of -25% to +25%.
	// #nosec G404 - Using weak RNG is acceptable for jitter calculation
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - delay/4

	return min(delay, r.cfg.MaxDelay)
}

// GetModel returns the model name from the wrapped implementation.
func (r *retryLLM) GetModel() string { return r.next.GetModel() }
