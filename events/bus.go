package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/poanetwork/layer-bridge/logging"
)

// Bus fans events out to independent subscribers. Each subscriber owns a bounded
// channel; when it is full the event is dropped for that subscriber only.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*Subscription
	nextID int
	logger logging.Logger
}

type Subscription struct {
	C    <-chan Event
	ch   chan Event
	id   int
	name string
	bus  *Bus
	once sync.Once
}

func NewBus(logger logging.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]*Subscription),
		logger: logger.WithField("service", "events"),
	}
}

func (b *Bus) Subscribe(name string, buffer int) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, buffer)
	s := &Subscription{C: ch, ch: ch, id: b.nextID, name: name, bus: b}
	b.subs[s.id] = s
	b.nextID++
	return s
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

func (b *Bus) Publish(e Event) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	PublishedTotal.WithLabelValues(string(e.Type)).Inc()
	for _, s := range b.subs {
		select {
		case s.ch <- e:
		default:
			DroppedTotal.WithLabelValues(s.name).Inc()
			b.logger.WithField("subscriber", s.name).WithField("event", e.Type).Debug("subscriber is full, event dropped")
		}
	}
}
