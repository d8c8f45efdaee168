package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/layer-bridge/entity"
)

type memoryEntry struct {
	value     interface{}
	expiresAt time.Time
}

// Memory is a process-local StatusCache with per-entry TTL.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) load(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) store(key string, v interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: v, expiresAt: m.now().Add(m.ttl)}
}

func (m *Memory) GetMessage(_ context.Context, messageID common.Hash) (*entity.BridgeMessage, error) {
	v, ok := m.load(messageKey(messageID))
	if !ok {
		return nil, nil
	}
	return v.(*entity.BridgeMessage).Clone(), nil
}

func (m *Memory) SetMessage(_ context.Context, msg *entity.BridgeMessage) error {
	m.store(messageKey(msg.MessageID), msg.Clone())
	return nil
}

func (m *Memory) GetSwap(_ context.Context, swapID common.Hash) (*entity.SwapRecord, error) {
	v, ok := m.load(swapKey(swapID))
	if !ok {
		return nil, nil
	}
	return v.(*entity.SwapRecord).Clone(), nil
}

func (m *Memory) SetSwap(_ context.Context, swap *entity.SwapRecord) error {
	m.store(swapKey(swap.SwapID), swap.Clone())
	return nil
}
