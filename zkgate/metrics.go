package zkgate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ProofResults = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bridge",
	Subsystem: "zkgate",
	Name:      "proof_results_total",
	Help:      "Proof verification outcomes per message type.",
}, []string{"type", "result"})
