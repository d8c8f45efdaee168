package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/logging"
)

type KafkaChannel struct {
	cfg    *config.SecondaryConfig
	writer *kafka.Writer
	logger logging.Logger

	mu      sync.Mutex
	readers []*kafka.Reader
	closed  bool
}

func NewKafkaChannel(cfg *config.SecondaryConfig, logger logging.Logger) (*KafkaChannel, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka configuration incomplete: both brokers and topic are required")
	}
	logger = logger.WithField("service", "kafka")
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 5 * time.Second,
		ReadTimeout:  5 * time.Second,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Errorf("kafka writer: "+msg, args...)
		}),
	}
	logger.WithField("brokers", cfg.Brokers).Info("kafka channel created")
	return &KafkaChannel{cfg: cfg, writer: w, logger: logger}, nil
}

// Publish writes synchronously and returns once the brokers acknowledged the write.
func (c *KafkaChannel) Publish(ctx context.Context, topic string, ciphertext []byte) error {
	defer ObserveDuration("kafka", "publish")()
	err := c.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Value: ciphertext})
	ObserveResult("kafka", "publish", err)
	if err != nil {
		return fmt.Errorf("failed to write to kafka: %w", err)
	}
	return nil
}

func (c *KafkaChannel) Subscribe(ctx context.Context, topic string) (<-chan Delivery, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.cfg.Brokers,
		GroupID:        c.cfg.GroupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
	})
	c.readers = append(c.readers, r)
	c.mu.Unlock()

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			m, err := r.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
					c.logger.WithError(err).Error("kafka consumer stopped")
				}
				return
			}
			ObserveResult("kafka", "receive", nil)
			msg := m
			d := Delivery{
				Data: msg.Value,
				Ack: func(success bool) {
					if !success {
						c.logger.WithField("offset", msg.Offset).Warn("message not acknowledged, offset is not committed")
						return
					}
					if err := r.CommitMessages(context.Background(), msg); err != nil {
						c.logger.WithError(err).WithField("offset", msg.Offset).Error("failed to commit offset")
					}
				},
			}
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *KafkaChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	errs := []error{c.writer.Close()}
	for _, r := range c.readers {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}
