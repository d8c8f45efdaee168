package pubsub

import (
	"context"
	"sync"
)

// MemoryChannel delivers published messages to every current subscriber of a topic.
type MemoryChannel struct {
	mu     sync.Mutex
	subs   map[string][]chan Delivery
	closed bool
}

func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{subs: make(map[string][]chan Delivery)}
}

func (c *MemoryChannel) Publish(ctx context.Context, topic string, ciphertext []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	data := append([]byte(nil), ciphertext...)
	for _, ch := range c.subs[topic] {
		select {
		case ch <- Delivery{Data: data, Ack: func(bool) {}}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	ObserveResult("memory", "publish", nil)
	return nil
}

func (c *MemoryChannel) Subscribe(ctx context.Context, topic string) (<-chan Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	ch := make(chan Delivery, 16)
	c.subs[topic] = append(c.subs[topic], ch)
	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		list := c.subs[topic]
		for i, s := range list {
			if s == ch {
				c.subs[topic] = append(list[:i], list[i+1:]...)
				close(ch)
				return
			}
		}
	}()
	return ch, nil
}

func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
