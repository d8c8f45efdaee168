package pubsub

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Results = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "pubsub",
		Name:      "results_total",
	}, []string{"transport", "op", "status"})
	Durations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bridge",
		Subsystem: "pubsub",
		Name:      "duration_seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"transport", "op"})
)

func ObserveResult(transport, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	Results.WithLabelValues(transport, op, status).Inc()
}

func ObserveDuration(transport, op string) func() time.Duration {
	return prometheus.NewTimer(Durations.WithLabelValues(transport, op)).ObserveDuration
}
