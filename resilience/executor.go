package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/poanetwork/layer-bridge/config"
)

// Executor applies retry, timeout and endpoint failover to calls against one ledger.
type Executor struct {
	Backoff BackoffConfig
	Timeout time.Duration
	Nodes   *NodeManager
}

func NewExecutor(cfg config.ResilienceConfig, nodes *NodeManager) *Executor {
	return &Executor{
		Backoff: NewBackoffConfig(cfg.Retry),
		Timeout: cfg.CallTimeout,
		Nodes:   nodes,
	}
}

// Call runs a read-only op. Timeouts are retried on the next healthy endpoint.
func Call[T any](ctx context.Context, e *Executor, op func(ctx context.Context, endpoint string) (T, error)) (T, error) {
	return call(ctx, e, false, op)
}

// Submit runs a state changing op. A timeout stops retrying because the submission
// may have landed; callers reconcile by polling status.
func Submit[T any](ctx context.Context, e *Executor, op func(ctx context.Context, endpoint string) (T, error)) (T, error) {
	return call(ctx, e, true, op)
}

func call[T any](ctx context.Context, e *Executor, submit bool, op func(ctx context.Context, endpoint string) (T, error)) (T, error) {
	return WithBackoff(ctx, e.Backoff, func(ctx context.Context, _ int) (T, error) {
		var zero T
		endpoint, err := e.Nodes.Pick()
		if err != nil {
			return zero, err
		}
		res, err := WithTimeout(ctx, e.Timeout, func(ctx context.Context) (T, error) {
			return op(ctx, endpoint)
		})
		if err != nil {
			if IsPermanent(err) {
				return zero, err
			}
			e.Nodes.MarkUnhealthy(endpoint, err)
			if submit && errors.Is(err, ErrTimeout) {
				return zero, Permanent(err)
			}
			return zero, err
		}
		e.Nodes.MarkHealthy(endpoint)
		return res, nil
	})
}
