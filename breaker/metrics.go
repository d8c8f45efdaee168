package breaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Circuit breaker state per route: 0 closed, 1 half-open, 2 open.",
	}, []string{"route"})
	RejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "breaker",
		Name:      "rejected_total",
		Help:      "Calls short-circuited by an open breaker.",
	}, []string{"route"})
)
