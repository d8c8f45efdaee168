package utils

import (
	"context"
	"time"
)

// ContextSleep waits for d. It returns nil if ctx is done first.
func ContextSleep(ctx context.Context, d time.Duration) *time.Time {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return nil
	case t := <-timer.C:
		return &t
	}
}

// PollUntil calls fn every interval until it reports done or ctx is done.
// It returns false when ctx ended the polling.
func PollUntil(ctx context.Context, interval time.Duration, fn func(ctx context.Context) bool) bool {
	for {
		if fn(ctx) {
			return true
		}
		if ContextSleep(ctx, interval) == nil {
			return false
		}
	}
}
