package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/layer-bridge/entity"
)

type swapsRepo struct {
	mu    sync.RWMutex
	swaps map[common.Hash]*entity.SwapRecord
}

func NewSwapsRepo() entity.SwapsRepo {
	return &swapsRepo{
		swaps: make(map[common.Hash]*entity.SwapRecord),
	}
}

func (r *swapsRepo) Create(_ context.Context, swap *entity.SwapRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.swaps[swap.SwapID]; ok {
		return fmt.Errorf("swap %s already exists", swap.SwapID)
	}
	r.swaps[swap.SwapID] = swap.Clone()
	return nil
}

func (r *swapsRepo) GetByID(_ context.Context, swapID common.Hash) (*entity.SwapRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	swap, ok := r.swaps[swapID]
	if !ok {
		return nil, fmt.Errorf("swap %s: %w", swapID, entity.ErrSwapNotFound)
	}
	return swap.Clone(), nil
}

func (r *swapsRepo) Update(_ context.Context, swap *entity.SwapRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.swaps[swap.SwapID]; !ok {
		return fmt.Errorf("swap %s: %w", swap.SwapID, entity.ErrSwapNotFound)
	}
	r.swaps[swap.SwapID] = swap.Clone()
	return nil
}

func (r *swapsRepo) FindOpen(_ context.Context, limit uint64) ([]*entity.SwapRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*entity.SwapRecord, 0, 10)
	for _, swap := range r.swaps {
		if swap.Status == entity.SwapPending || swap.RefundPending {
			res = append(res, swap.Clone())
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
