package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/layer-bridge/entity"
)

type messagesRepo struct {
	mu          sync.RWMutex
	messages    map[common.Hash]*entity.BridgeMessage
	commitments map[common.Hash]struct{}
}

func NewMessagesRepo() entity.MessagesRepo {
	return &messagesRepo{
		messages:    make(map[common.Hash]*entity.BridgeMessage),
		commitments: make(map[common.Hash]struct{}),
	}
}

func (r *messagesRepo) Create(_ context.Context, msg *entity.BridgeMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commitments[msg.CommitmentHash]; ok {
		return fmt.Errorf("commitment %s: %w", msg.CommitmentHash, entity.ErrReplayDetected)
	}
	if _, ok := r.messages[msg.MessageID]; ok {
		return fmt.Errorf("message %s: %w", msg.MessageID, entity.ErrReplayDetected)
	}
	r.commitments[msg.CommitmentHash] = struct{}{}
	r.messages[msg.MessageID] = msg.Clone()
	return nil
}

func (r *messagesRepo) GetByID(_ context.Context, messageID common.Hash) (*entity.BridgeMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msg, ok := r.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", messageID, entity.ErrMessageNotFound)
	}
	return msg.Clone(), nil
}

func (r *messagesRepo) Update(_ context.Context, msg *entity.BridgeMessage, expected entity.MessageStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.messages[msg.MessageID]
	if !ok {
		return fmt.Errorf("message %s: %w", msg.MessageID, entity.ErrMessageNotFound)
	}
	if stored.Status != expected {
		return fmt.Errorf("message %s is no longer %s: %w", msg.MessageID, expected, entity.ErrStaleStatus)
	}
	r.messages[msg.MessageID] = msg.Clone()
	return nil
}

func (r *messagesRepo) FindBySender(_ context.Context, sender string) ([]*entity.BridgeMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*entity.BridgeMessage, 0, 10)
	for _, msg := range r.messages {
		if msg.Sender == sender {
			res = append(res, msg.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (r *messagesRepo) FindByStatus(_ context.Context, status entity.MessageStatus, direction entity.Direction, limit uint64) ([]*entity.BridgeMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*entity.BridgeMessage, 0, 10)
	for _, msg := range r.messages {
		if msg.Status == status && msg.Direction == direction {
			res = append(res, msg.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	if uint64(len(res)) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *messagesRepo) CountPendingOlderThan(_ context.Context, before time.Time) (map[entity.Direction]uint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make(map[entity.Direction]uint, 2)
	for _, msg := range r.messages {
		if msg.Status == entity.StatusPending && msg.CreatedAt.Before(before) {
			res[msg.Direction]++
		}
	}
	return res, nil
}

func (r *messagesRepo) HasCommitment(_ context.Context, commitment common.Hash) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.commitments[commitment]
	return ok, nil
}

func (r *messagesRepo) MaxSequence(_ context.Context) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var seq uint64
	for _, msg := range r.messages {
		if msg.Sequence > seq {
			seq = msg.Sequence
		}
	}
	return seq, nil
}
