package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Retry defaults
const (
	DefaultBackendRetries = 2
	RetryBaseDelay        = 2 * time.Second
	RetryMaxDelay         = 15 * time.Second
)

// isRetryableError timeouts, cancellation and configuration errors are final;
// network and transient API errors are retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"config", "not found", "unauthorized", "invalid api key", "status code: 400", "status code: 401", "status code: 403"} {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	return true
}

// retryRun calls fn, retrying up to maxRetries times with exponential backoff
// while ctx is alive.
func retryRun[T any](ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	result, err := fn()
	if err == nil || !isRetryableError(err) {
		return result, err
	}

	lastErr := err
	for i := 1; i <= maxRetries; i++ {
		delay := baseDelay * time.Duration(1<<(i-1))
		if delay > RetryMaxDelay {
			delay = RetryMaxDelay
		}
		log.Warn("retry %d/%d after %v, last error: %v", i, maxRetries, delay, lastErr)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		result, err = fn()
		if err == nil {
			log.Info("retry %d/%d succeeded", i, maxRetries)
			return result, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return zero, err
		}
	}
	return zero, goerr.Wrap(lastErr, "still failing after retries", goerr.V("retries", maxRetries))
}
