package utils

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// RetryConfig holds configuration for retry operations with exponential backoff.
type RetryConfig struct {
	// MaxAttempts includes the initial attempt
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// JitterFactor adds up to this fraction of the delay at random (0.1 = 10%)
	JitterFactor float64
	// RetryableErrors reports whether err should be retried. Nil retries everything.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns 3 attempts starting at 1s, doubling, capped at 30s
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// RetryWithBackoff runs fn until it succeeds, the attempts are used up, the
// error is not retryable, or ctx is done.
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if config.RetryableErrors != nil && !config.RetryableErrors(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		wait := delay
		if config.JitterFactor > 0 {
			wait += time.Duration(randomInt64n(int64(float64(delay) * config.JitterFactor)))
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(wait):
		}

		if config.BackoffFactor > 0 {
			delay = time.Duration(float64(delay) * config.BackoffFactor)
		}
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func randomInt64n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UnixNano() % n
	}
	return int64(binary.BigEndian.Uint64(b[:])>>1) % n
}
