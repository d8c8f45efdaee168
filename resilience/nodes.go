package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/logging"
)

// Prober checks whether an unhealthy endpoint works again.
type Prober func(ctx context.Context, endpoint string) error

type nodeState struct {
	failures    int
	healthy     bool
	unhealthyAt time.Time
	lastErr     error
}

// NodeManager tracks endpoint health for one ledger and picks endpoints round-robin
// among the healthy ones.
type NodeManager struct {
	mu               sync.Mutex
	ledger           string
	logger           logging.Logger
	endpoints        []string
	nodes            map[string]*nodeState
	threshold        int
	recoveryInterval time.Duration
	next             int
	now              func() time.Time
}

func NewNodeManager(ledger string, endpoints []string, cfg config.NodeHealthConfig, logger logging.Logger) *NodeManager {
	m := &NodeManager{
		ledger:           ledger,
		logger:           logger.WithField("ledger", ledger),
		endpoints:        endpoints,
		nodes:            make(map[string]*nodeState, len(endpoints)),
		threshold:        cfg.FailureThreshold,
		recoveryInterval: cfg.RecoveryInterval,
		now:              time.Now,
	}
	if m.threshold <= 0 {
		m.threshold = 1
	}
	for _, e := range endpoints {
		m.nodes[e] = &nodeState{healthy: true}
		NodeHealthy.WithLabelValues(ledger, e).Set(1)
	}
	return m
}

// SetClock replaces the time source.
func (m *NodeManager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *NodeManager) Pick() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < len(m.endpoints); i++ {
		e := m.endpoints[(m.next+i)%len(m.endpoints)]
		if m.nodes[e].healthy {
			m.next = (m.next + i + 1) % len(m.endpoints)
			return e, nil
		}
	}
	return "", fmt.Errorf("%s: %w", m.ledger, ErrNoHealthyEndpoints)
}

func (m *NodeManager) MarkUnhealthy(endpoint string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[endpoint]
	if !ok {
		return
	}
	n.failures++
	n.lastErr = err
	if n.healthy && n.failures >= m.threshold {
		n.healthy = false
		n.unhealthyAt = m.now()
		NodeHealthy.WithLabelValues(m.ledger, endpoint).Set(0)
		m.logger.WithError(err).WithFields(logrus.Fields{
			"endpoint": endpoint,
			"failures": n.failures,
		}).Warn("endpoint removed from healthy set")
	}
}

func (m *NodeManager) MarkHealthy(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[endpoint]
	if !ok {
		return
	}
	if !n.healthy {
		m.logger.WithField("endpoint", endpoint).Info("endpoint restored to healthy set")
	}
	n.failures = 0
	n.healthy = true
	n.lastErr = nil
	NodeHealthy.WithLabelValues(m.ledger, endpoint).Set(1)
}

// dueForProbe returns unhealthy endpoints whose recovery interval has elapsed.
func (m *NodeManager) dueForProbe() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var due []string
	for _, e := range m.endpoints {
		n := m.nodes[e]
		if !n.healthy && now.Sub(n.unhealthyAt) >= m.recoveryInterval {
			due = append(due, e)
		}
	}
	return due
}

// ProbeUnhealthy re-probes endpoints that stayed unhealthy for the recovery interval.
func (m *NodeManager) ProbeUnhealthy(ctx context.Context, probe Prober) {
	for _, e := range m.dueForProbe() {
		if err := probe(ctx, e); err != nil {
			m.mu.Lock()
			m.nodes[e].unhealthyAt = m.now()
			m.nodes[e].lastErr = err
			m.mu.Unlock()
			m.logger.WithError(err).WithField("endpoint", e).Debug("recovery probe failed")
			continue
		}
		m.MarkHealthy(e)
	}
}

func (m *NodeManager) StartRecovery(ctx context.Context, probe Prober) {
	interval := m.recoveryInterval / 2
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.ProbeUnhealthy(ctx, probe)
		}
	}
}

func (m *NodeManager) Records() []entity.NodeHealthRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]entity.NodeHealthRecord, 0, len(m.endpoints))
	for _, e := range m.endpoints {
		n := m.nodes[e]
		rec := entity.NodeHealthRecord{
			Endpoint:              e,
			Healthy:               n.healthy,
			ConsecutiveFailures:   n.failures,
			RecoveryProbeInterval: m.recoveryInterval,
		}
		if !n.healthy {
			at := n.unhealthyAt
			rec.MarkedUnhealthyAt = &at
		}
		if n.lastErr != nil {
			rec.LastError = n.lastErr.Error()
		}
		records = append(records, rec)
	}
	return records
}
