package relayer

import (
	"context"
	"fmt"
	"sync"

	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/logging"
)

// Handler executes an admitted inbound message on this side of the bridge.
type Handler interface {
	Handle(ctx context.Context, msg *entity.BridgeMessage, payload Payload) error
}

type HandlerFunc func(ctx context.Context, msg *entity.BridgeMessage, payload Payload) error

func (f HandlerFunc) Handle(ctx context.Context, msg *entity.BridgeMessage, payload Payload) error {
	return f(ctx, msg, payload)
}

// Handlers dispatches messages by type. A type without a handler is never executed.
type Handlers struct {
	mu       sync.RWMutex
	handlers map[entity.MessageType]Handler
}

func NewHandlers() *Handlers {
	return &Handlers{handlers: make(map[entity.MessageType]Handler)}
}

func (h *Handlers) Register(msgType entity.MessageType, handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
}

func (h *Handlers) Execute(ctx context.Context, msg *entity.BridgeMessage) error {
	h.mu.RLock()
	handler, ok := h.handlers[msg.MessageType]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler for %q: %w", msg.MessageType, entity.ErrUnknownMessageType)
	}
	payload, err := DecodePayload(msg.MessageType, msg.Payload)
	if err != nil {
		return err
	}
	return handler.Handle(ctx, msg, payload)
}

// LogHandler accepts any well formed payload and records it.
func LogHandler(logger logging.Logger) Handler {
	return HandlerFunc(func(_ context.Context, msg *entity.BridgeMessage, payload Payload) error {
		logger.WithField("message_id", msg.MessageID).
			WithField("type", payload.Type()).
			WithField("payload", fmt.Sprintf("%+v", payload)).
			Info("executed inbound message")
		return nil
	})
}
