package relayer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "relayer",
		Name:      "submissions_total",
		Help:      "Outbound submissions by route and result.",
	}, []string{"route", "result"})
	InboundTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "relayer",
		Name:      "inbound_total",
		Help:      "Inbound messages by processing result.",
	}, []string{"result"})
	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "relayer",
		Name:      "proof_retries_total",
	}, []string{"direction"})
	RefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "relayer",
		Name:      "refunds_total",
	}, []string{"result"})
	QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "relayer",
		Name:      "queue_length",
		Help:      "Inbound messages waiting for a worker.",
	})
	L2HeadBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "relayer",
		Name:      "l2_head_block",
		Help:      "Latest final L2 block seen by the events watcher.",
	})
)
