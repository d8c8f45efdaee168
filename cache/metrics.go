package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Results = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "cache",
		Name:      "results_total",
	}, []string{"op", "result"})
	Durations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bridge",
		Subsystem: "cache",
		Name:      "duration_seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}, []string{"op"})
)

func ObserveDuration(op string) func() time.Duration {
	return prometheus.NewTimer(Durations.WithLabelValues(op)).ObserveDuration
}
