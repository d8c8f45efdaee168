package oracle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var QuorumFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "bridge",
	Subsystem: "oracle",
	Name:      "quorum_failures_total",
	Help:      "Attestations rejected for not reaching quorum.",
})
