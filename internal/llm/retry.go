package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RetryConfig configures retry behavior for completion calls.
type RetryConfig struct {
	MaxRetries int           // 0 = no retries
	RetryDelay time.Duration // delay before the first retry
	MaxDelay   time.Duration // caps exponential backoff
	Timeout    time.Duration // per-attempt timeout, 0 = none
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelay: time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    time.Minute,
	}
}

// RetryClient wraps a Client with per-attempt timeouts and exponential backoff.
type RetryClient struct {
	inner  Client
	config RetryConfig
	logger *zap.Logger
}

func NewRetryClient(inner Client, config RetryConfig, logger *zap.Logger) *RetryClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxDelay == 0 {
		config.MaxDelay = DefaultRetryConfig().MaxDelay
	}
	return &RetryClient{inner: inner, config: config, logger: logger}
}

func (r *RetryClient) Name() string { return r.inner.Name() }

func (r *RetryClient) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff(attempt)
			r.logger.Warn("retrying completion",
				zap.String("provider", r.inner.Name()),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.config.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		}
		out, err := r.inner.Complete(attemptCtx, prompt)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !Retryable(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("max retries (%d) exceeded: %w", r.config.MaxRetries, lastErr)
}

// backoff returns RetryDelay * 2^(attempt-1), capped at MaxDelay.
func (r *RetryClient) backoff(attempt int) time.Duration {
	delay := r.config.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > r.config.MaxDelay {
			return r.config.MaxDelay
		}
	}
	return delay
}

// Retryable reports whether err is worth another attempt: rate limiting,
// server errors and timeouts are; caller cancellation and other client
// errors are not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
