package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "registry",
		Name:      "messages_total",
		Help:      "Message state transitions by direction and resulting status.",
	}, []string{"direction", "status"})
	ReplayRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "registry",
		Name:      "replay_rejected_total",
		Help:      "Messages rejected because their commitment hash was already used.",
	}, []string{"direction"})
)
