package breaker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/poanetwork/layer-bridge/breaker"
	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/resilience"
)

var errNetwork = errors.New("connection reset")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newBreaker(t *testing.T) (*breaker.Breaker, *clock) {
	t.Helper()
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	b := breaker.New(entity.RouteL1ToL2, config.BreakerConfig{FailureThreshold: 3, ResetTimeout: 30 * time.Second}, logging.Discard())
	b.SetClock(c.Now)
	return b, c
}

func fail(context.Context) error    { return errNetwork }
func succeed(context.Context) error { return nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	t.Parallel()

	b, _ := newBreaker(t)
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, b.Execute(context.Background(), fail), errNetwork)
	}
	require.Equal(t, entity.BreakerOpen, b.State().State)
	require.NotNil(t, b.State().OpenedAt)

	called := false
	err := b.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, breaker.ErrCircuitOpen)
	require.NotErrorIs(t, err, errNetwork)
	require.False(t, called)
}

func TestBreakerHalfOpen(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name     string
		Probe    func(context.Context) error
		Expected entity.BreakerState
	}{
		{"successful probe closes", succeed, entity.BreakerClosed},
		{"failed probe reopens", fail, entity.BreakerOpen},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()

			b, c := newBreaker(t)
			for i := 0; i < 3; i++ {
				_ = b.Execute(context.Background(), fail)
			}
			c.Advance(30 * time.Second)

			probeStarted := make(chan struct{})
			release := make(chan struct{})
			done := make(chan error, 1)
			go func() {
				done <- b.Execute(context.Background(), func(ctx context.Context) error {
					close(probeStarted)
					<-release
					return test.Probe(ctx)
				})
			}()
			<-probeStarted
			require.Equal(t, entity.BreakerHalfOpen, b.State().State)

			// only one probe may be in flight
			require.ErrorIs(t, b.Execute(context.Background(), succeed), breaker.ErrCircuitOpen)

			close(release)
			<-done
			require.Equal(t, test.Expected, b.State().State)
		})
	}
}

func TestBreakerCanceledProbeKeepsState(t *testing.T) {
	t.Parallel()

	b, c := newBreaker(t)
	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), fail)
	}
	c.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	require.ErrorIs(t, err, context.Canceled)

	st := b.State()
	require.Equal(t, entity.BreakerHalfOpen, st.State)
	require.Equal(t, 3, st.ConsecutiveFailures)

	// the probe slot is free again
	require.NoError(t, b.Execute(context.Background(), succeed))
	require.Equal(t, entity.BreakerClosed, b.State().State)
}

func TestBreakerCanceledCallKeepsFailures(t *testing.T) {
	t.Parallel()

	b, _ := newBreaker(t)
	for i := 0; i < 2; i++ {
		_ = b.Execute(context.Background(), fail)
	}
	_ = b.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	require.Equal(t, 2, b.State().ConsecutiveFailures)

	_ = b.Execute(context.Background(), fail)
	require.Equal(t, entity.BreakerOpen, b.State().State)
}

func TestBreakerPermanentErrorsDoNotCount(t *testing.T) {
	t.Parallel()

	b, _ := newBreaker(t)
	revert := resilience.Permanent(errors.New("execution reverted"))
	for i := 0; i < 5; i++ {
		require.Error(t, b.Execute(context.Background(), func(context.Context) error { return revert }))
	}
	require.Equal(t, entity.BreakerClosed, b.State().State)
}

func TestSetIsolatesRoutes(t *testing.T) {
	t.Parallel()

	s := breaker.NewSet(config.BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute}, logging.Discard())
	var changes []entity.BreakerState
	s.OnStateChange(func(route entity.Route, from, to entity.BreakerState) {
		require.Equal(t, entity.RouteSwap, route)
		changes = append(changes, to)
	})

	_ = s.Get(entity.RouteSwap).Execute(context.Background(), fail)
	require.ErrorIs(t, s.Get(entity.RouteSwap).Execute(context.Background(), succeed), breaker.ErrCircuitOpen)
	require.NoError(t, s.Get(entity.RouteL2ToL1).Execute(context.Background(), succeed))
	require.Equal(t, []entity.BreakerState{entity.BreakerOpen}, changes)
	require.Len(t, s.States(), 3)
}
