package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "resilience",
		Name:      "retries_total",
		Help:      "Number of retried outbound calls.",
	})
	TimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "resilience",
		Name:      "timeouts_total",
		Help:      "Number of outbound calls the relayer stopped waiting for.",
	})
	NodeHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "resilience",
		Name:      "node_healthy",
		Help:      "Shows 1 if the endpoint is in the healthy set.",
	}, []string{"ledger", "endpoint"})
)
