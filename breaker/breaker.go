package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/resilience"
)

// ErrCircuitOpen is returned without attempting the call while a route is open.
var ErrCircuitOpen = errors.New("circuit open")

type StateChangeFunc func(route entity.Route, from, to entity.BreakerState)

// Breaker guards one route. In the half-open state exactly one probe call is let through.
type Breaker struct {
	mu            sync.Mutex
	route         entity.Route
	state         entity.BreakerState
	failures      int
	openedAt      time.Time
	probeInFlight bool
	threshold     int
	resetTimeout  time.Duration
	now           func() time.Time
	onChange      StateChangeFunc
	logger        logging.Logger
}

func New(route entity.Route, cfg config.BreakerConfig, logger logging.Logger) *Breaker {
	b := &Breaker{
		route:        route,
		state:        entity.BreakerClosed,
		threshold:    cfg.FailureThreshold,
		resetTimeout: cfg.ResetTimeout,
		now:          time.Now,
		logger:       logger.WithField("route", route),
	}
	if b.threshold <= 0 {
		b.threshold = 1
	}
	StateGauge.WithLabelValues(string(route)).Set(stateValue(b.state))
	return b
}

func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

func (b *Breaker) OnStateChange(fn StateChangeFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// Allow reports whether a call may proceed. A nil return in the half-open state
// reserves the single probe slot; the caller must report the outcome.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case entity.BreakerClosed:
		return nil
	case entity.BreakerOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return fmt.Errorf("%w: route %s", ErrCircuitOpen, b.route)
		}
		b.transition(entity.BreakerHalfOpen)
		b.probeInFlight = true
		return nil
	case entity.BreakerHalfOpen:
		if b.probeInFlight {
			return fmt.Errorf("%w: route %s probe in flight", ErrCircuitOpen, b.route)
		}
		b.probeInFlight = true
		return nil
	}
	return nil
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probeInFlight = false
	if b.state != entity.BreakerClosed {
		b.transition(entity.BreakerClosed)
	}
}

func (b *Breaker) RecordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.state {
	case entity.BreakerHalfOpen:
		b.probeInFlight = false
		b.openedAt = b.now()
		b.transition(entity.BreakerOpen)
	case entity.BreakerClosed:
		if b.failures >= b.threshold {
			b.openedAt = b.now()
			b.transition(entity.BreakerOpen)
		}
	}
	if b.state == entity.BreakerOpen {
		b.logger.WithError(err).WithField("failures", b.failures).Warn("route circuit is open")
	}
}

// Release gives back a reserved probe slot without an outcome. The state and the
// failure count stay as they are.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probeInFlight = false
}

// Execute runs fn through the breaker. Errors marked permanent by the resilience
// package, such as contract reverts, mean the route is reachable and do not count as
// failures. Timeouts always count. A call abandoned by its caller says nothing about
// the route and is not recorded.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.Allow(); err != nil {
		RejectedTotal.WithLabelValues(string(b.route)).Inc()
		return err
	}
	err := fn(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		b.Release()
	case err != nil && countsAsFailure(err):
		b.RecordFailure(err)
	default:
		b.RecordSuccess()
	}
	return err
}

func countsAsFailure(err error) bool {
	return errors.Is(err, resilience.ErrTimeout) || !resilience.IsPermanent(err)
}

func (b *Breaker) State() entity.CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := entity.CircuitBreakerState{
		Route:               b.route,
		State:               b.state,
		ConsecutiveFailures: b.failures,
		FailureThreshold:    b.threshold,
		ResetTimeout:        b.resetTimeout,
	}
	if b.state != entity.BreakerClosed {
		at := b.openedAt
		st.OpenedAt = &at
	}
	return st
}

func (b *Breaker) transition(to entity.BreakerState) {
	from := b.state
	b.state = to
	StateGauge.WithLabelValues(string(b.route)).Set(stateValue(to))
	b.logger.WithFields(logrus.Fields{
		"from": from,
		"to":   to,
	}).Info("circuit breaker state changed")
	if b.onChange != nil {
		b.onChange(b.route, from, to)
	}
}

func stateValue(s entity.BreakerState) float64 {
	switch s {
	case entity.BreakerOpen:
		return 2
	case entity.BreakerHalfOpen:
		return 1
	default:
		return 0
	}
}
