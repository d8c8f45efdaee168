package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "events",
		Name:      "published_total",
	}, []string{"type"})
	DroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Events dropped because a subscriber channel was full.",
	}, []string{"subscriber"})
)
