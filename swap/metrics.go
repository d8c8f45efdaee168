package swap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SwapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "swap",
		Name:      "finished_total",
		Help:      "Swaps that reached a final status.",
	}, []string{"status"})
	CompensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "swap",
		Name:      "compensations_total",
		Help:      "L2 escrow refunds by result.",
	}, []string{"result"})
	OpenSwaps = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "swap",
		Name:      "open",
		Help:      "Swaps seen open by the last reconciler run.",
	})
)
