package output

import (
	"errors"
	"math"
	"syscall"
	"time"

	"go-metadata-extractor/internal/model"
)

// isRetryableError reports transient open failures: descriptor exhaustion
// and interrupted or would-block system calls.
func isRetryableError(err error) bool {
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.EAGAIN)
}

// backoffDelay is the wait before the given 1-based retry attempt.
func backoffDelay(cfg model.RetryConfig, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt-1)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}

// withRetry runs op, retrying transient failures with exponential backoff.
func withRetry[T any](cfg model.RetryConfig, op func() (T, error)) (T, error) {
	v, err := op()
	for attempt := 1; err != nil && attempt <= cfg.MaxRetries && isRetryableError(err); attempt++ {
		time.Sleep(backoffDelay(cfg, attempt))
		v, err = op()
	}
	return v, err
}
