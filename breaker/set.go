package breaker

import (
	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/logging"
)

// Set holds one breaker per route so a failing route never blocks the others.
type Set struct {
	breakers map[entity.Route]*Breaker
}

func NewSet(cfg config.BreakerConfig, logger logging.Logger) *Set {
	s := &Set{breakers: make(map[entity.Route]*Breaker)}
	for _, r := range []entity.Route{entity.RouteL1ToL2, entity.RouteL2ToL1, entity.RouteSwap} {
		s.breakers[r] = New(r, cfg, logger)
	}
	return s
}

func (s *Set) Get(route entity.Route) *Breaker {
	return s.breakers[route]
}

func (s *Set) OnStateChange(fn StateChangeFunc) {
	for _, b := range s.breakers {
		b.OnStateChange(fn)
	}
}

func (s *Set) States() []entity.CircuitBreakerState {
	res := make([]entity.CircuitBreakerState, 0, len(s.breakers))
	for _, r := range []entity.Route{entity.RouteL1ToL2, entity.RouteL2ToL1, entity.RouteSwap} {
		res = append(res, s.breakers[r].State())
	}
	return res
}
