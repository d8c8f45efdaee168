package watcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "jobs",
		Name:      "runs_total",
	}, []string{"job", "result"})
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bridge",
		Subsystem: "jobs",
		Name:      "duration_seconds",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"job"})
	StuckMessages = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "alert",
		Subsystem: "bridge",
		Name:      "stuck_messages",
		Help:      "Shows the number of messages still pending after the message timeout.",
	}, []string{"direction"})
)
