package dispatch

import (
	"context"
	"math/rand/v2"
	"time"
)

// retryConfig controls the per-message retry loop: a constant base delay
// with random jitter of ±JitterFraction. MaxRetries counts the retries
// after the first failed attempt.
type retryConfig struct {
	MaxRetries     int
	Delay          time.Duration
	JitterFraction float64

	// OnRetry is called before each retry sleep with attempt number and error.
	OnRetry func(attempt int, err error)
}

// retryDo executes fn, retrying on any error. Context cancellation stops
// retries immediately.
func retryDo(ctx context.Context, cfg retryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return lastErr
		}

		// Don't sleep after the last attempt.
		if attempt >= cfg.MaxRetries {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(jitteredDelay(cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}

func jitteredDelay(cfg retryConfig) time.Duration {
	delay := float64(cfg.Delay)

	if cfg.JitterFraction > 0 {
		jitterRange := delay * cfg.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitterRange // [-jitterRange, +jitterRange]
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
