package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig controls the behavior of RetryWithBackoff.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// InitialDelay is the pause before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration
	// Multiplier scales the delay after each attempt. 1.0 keeps it fixed.
	Multiplier float64
}

// DefaultRetryConfig returns the exponential-backoff configuration that
// RetryWithBackoff falls back to when given a nil config.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// MkcolRetryConfig returns the fixed-pause configuration for directory
// creation: three retries, 500 ms apart.
func MkcolRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   1.0,
	}
}

// RetryableFunc is a function that can be retried.
type RetryableFunc func() error

// IsRetryableFunc reports whether an error is worth retrying.
type IsRetryableFunc func(error) bool

// RetryWithBackoff executes fn, retrying on retryable errors until the
// attempt budget is exhausted or the context is cancelled.
func RetryWithBackoff(ctx context.Context, config *RetryConfig, isRetryable IsRetryableFunc, fn RetryableFunc) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return err
		}
		if attempt == config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry interrupted: %w", ctx.Err())
		case <-time.After(delay):
		}

		next := time.Duration(float64(delay) * config.Multiplier)
		if next > config.MaxDelay {
			next = config.MaxDelay
		}
		delay = next
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", config.MaxRetries, lastErr)
}
