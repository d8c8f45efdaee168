package pubsub

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("channel is closed")

// Delivery is a received ciphertext. Ack(true) confirms processing; Ack(false) leaves
// the message for redelivery where the transport supports it.
type Delivery struct {
	Data []byte
	Ack  func(success bool)
}

// Channel is the secondary, encrypted delivery path between relayers.
type Channel interface {
	Publish(ctx context.Context, topic string, ciphertext []byte) error
	Subscribe(ctx context.Context, topic string) (<-chan Delivery, error)
	Close() error
}
