package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/utils"
)

type BackoffConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func NewBackoffConfig(cfg config.RetryConfig) BackoffConfig {
	return BackoffConfig{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
	}
}

// Delay returns the pause before the given retry, counting retries from 1.
func (c BackoffConfig) Delay(retry int) time.Duration {
	delay := c.InitialDelay
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

// WithBackoff calls op up to MaxRetries+1 times, sleeping with an exponentially growing
// delay between attempts. Errors marked with Permanent are returned immediately.
func WithBackoff[T any](ctx context.Context, cfg BackoffConfig, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			RetriesTotal.Inc()
			if utils.ContextSleep(ctx, cfg.Delay(attempt)) == nil {
				return zero, fmt.Errorf("retry interrupted: %w (last error: %v)", ctx.Err(), lastErr)
			}
		}
		res, err := op(ctx, attempt)
		if err == nil {
			return res, nil
		}
		if IsPermanent(err) {
			return zero, err
		}
		lastErr = err
	}
	return zero, fmt.Errorf("failed after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}
