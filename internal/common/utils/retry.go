// Package utils holds small helpers shared across the engine.
package utils

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"
)

// RetryConfig controls RetryWithBackoff.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the exponential growth of the delay.
	MaxDelay time.Duration
	// BackoffFactor multiplies the delay after every attempt.
	BackoffFactor float64
	// JitterFactor adds up to this fraction of the delay as randomness,
	// spreading out retry storms.
	JitterFactor float64
	// Retryable filters which errors trigger a retry. Nil retries everything.
	Retryable func(error) bool
}

// DefaultRetryConfig suits calls to external HTTP APIs.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// RetryWithBackoff runs fn up to MaxAttempts times with exponentially
// growing, jittered delays. It returns nil on the first success, the
// original error when Retryable rejects it, a wrapped context error on
// cancellation, and otherwise the last error after the attempts run out.
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if config.Retryable != nil && !config.Retryable(err) {
				return err
			}
		}
		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * config.BackoffFactor)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
		if config.JitterFactor > 0 {
			jitter := time.Duration(float64(delay) * config.JitterFactor)
			delay += time.Duration(randInt64n(int64(jitter)))
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// randInt64n returns a random int64 in [0, n), falling back to the clock if
// the system randomness source fails.
func randInt64n(n int64) int64 {
	if n <= 0 {
		return 0
	}

	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return time.Now().UnixNano() % n
	}

	var val int64
	for _, b := range buf {
		val = val<<8 | int64(b)
	}
	if val < 0 {
		val = -val
	}
	return val % n
}
