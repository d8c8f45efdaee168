package entity

import "time"

type Route string

const (
	RouteL1ToL2 Route = "l1_to_l2"
	RouteL2ToL1 Route = "l2_to_l1"
	RouteSwap   Route = "swap"
)

type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

type CircuitBreakerState struct {
	Route               Route         `json:"route"`
	State               BreakerState  `json:"state"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
	OpenedAt            *time.Time    `json:"openedAt,omitempty"`
	FailureThreshold    int           `json:"failureThreshold"`
	ResetTimeout        time.Duration `json:"resetTimeout"`
}

type NodeHealthRecord struct {
	Endpoint              string        `json:"endpoint"`
	Healthy               bool          `json:"healthy"`
	ConsecutiveFailures   int           `json:"consecutiveFailures"`
	MarkedUnhealthyAt     *time.Time    `json:"markedUnhealthyAt,omitempty"`
	RecoveryProbeInterval time.Duration `json:"recoveryProbeInterval"`
	LastError             string        `json:"lastError,omitempty"`
}
