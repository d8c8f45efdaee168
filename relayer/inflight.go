package relayer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/layer-bridge/entity"
)

// ErrMessageBusy is returned when another operation holds the message.
var ErrMessageBusy = errors.New("message is being processed")

// claim marks messageID as owned by the caller until release is called. Every
// operation with side effects on a message claims it first, so refunds, executions and
// submissions of one message never overlap.
func (r *Relayer) claim(messageID common.Hash) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[messageID]; ok {
		return nil, fmt.Errorf("message %s: %w: %w", messageID, entity.ErrInvalidTransition, ErrMessageBusy)
	}
	r.active[messageID] = struct{}{}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.active, messageID)
	}, nil
}

// lock claims messageID and loads its current state.
func (r *Relayer) lock(ctx context.Context, messageID common.Hash) (*entity.BridgeMessage, func(), error) {
	release, err := r.claim(messageID)
	if err != nil {
		return nil, nil, err
	}
	msg, err := r.registry.Get(ctx, messageID)
	if err != nil {
		release()
		return nil, nil, err
	}
	return msg, release, nil
}
