package swap_test

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/poanetwork/layer-bridge/contract"
	"github.com/poanetwork/layer-bridge/l1client"
)

type fakeEscrow struct {
	mu          sync.Mutex
	txCount     int64
	lockCalls   int
	lockErr     error
	cancelErr   error
	holdLocks   bool
	revertLocks bool
	escrow      map[common.Hash]contract.EscrowStatus
	receipts    map[common.Hash]*types.Receipt
	held        map[common.Hash]common.Hash
	cancels     []common.Hash
}

func newFakeEscrow() *fakeEscrow {
	return &fakeEscrow{
		escrow:   make(map[common.Hash]contract.EscrowStatus),
		receipts: make(map[common.Hash]*types.Receipt),
		held:     make(map[common.Hash]common.Hash),
	}
}

func (f *fakeEscrow) nextTx() common.Hash {
	f.txCount++
	return common.BigToHash(big.NewInt(f.txCount))
}

func (f *fakeEscrow) receipt(txHash common.Hash, ok bool) {
	status := types.ReceiptStatusSuccessful
	if !ok {
		status = types.ReceiptStatusFailed
	}
	f.receipts[txHash] = &types.Receipt{TxHash: txHash, Status: status, BlockNumber: big.NewInt(1)}
}

func (f *fakeEscrow) LockSwap(_ context.Context, swapID common.Hash, _ common.Address, _ time.Time, _ *big.Int, onSigned func(common.Hash) error) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lockCalls++
	txHash := f.nextTx()
	if err := onSigned(txHash); err != nil {
		return common.Hash{}, err
	}
	if f.lockErr != nil {
		return txHash, f.lockErr
	}
	switch {
	case f.holdLocks:
		f.held[txHash] = swapID
	case f.revertLocks:
		f.receipt(txHash, false)
	default:
		f.receipt(txHash, true)
		f.escrow[swapID] = contract.EscrowLocked
	}
	return txHash, nil
}

// mineLocks mines every held lock transaction.
func (f *fakeEscrow) mineLocks() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for txHash, swapID := range f.held {
		f.receipt(txHash, true)
		f.escrow[swapID] = contract.EscrowLocked
		delete(f.held, txHash)
	}
}

func (f *fakeEscrow) CancelSwap(_ context.Context, swapID common.Hash, onSigned func(common.Hash) error) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txHash := f.nextTx()
	if err := onSigned(txHash); err != nil {
		return common.Hash{}, err
	}
	if f.cancelErr != nil {
		return txHash, f.cancelErr
	}
	f.cancels = append(f.cancels, swapID)
	if f.escrow[swapID] == contract.EscrowLocked {
		f.escrow[swapID] = contract.EscrowRefunded
		f.receipt(txHash, true)
	} else {
		f.receipt(txHash, false)
	}
	return txHash, nil
}

func (f *fakeEscrow) GetSwapStatus(_ context.Context, swapID common.Hash) (contract.EscrowStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.escrow[swapID], nil
}

func (f *fakeEscrow) Receipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipts[txHash], nil
}

func (f *fakeEscrow) status(swapID common.Hash) contract.EscrowStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.escrow[swapID]
}

type fakeL1 struct {
	mu          sync.Mutex
	transferErr error
	transfers   []*l1client.Transfer
	blocks      map[string]*l1client.BlockMetadata
}

func newFakeL1() *fakeL1 {
	return &fakeL1{blocks: make(map[string]*l1client.BlockMetadata)}
}

func (f *fakeL1) Transfer(_ context.Context, transfer *l1client.Transfer) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transferErr != nil {
		return "", f.transferErr
	}
	f.transfers = append(f.transfers, transfer)
	id := fmt.Sprintf("block-%d", len(f.transfers))
	f.blocks[id] = &l1client.BlockMetadata{BlockID: id, State: l1client.BlockPending}
	return id, nil
}

func (f *fakeL1) BlockMetadata(_ context.Context, blockID string) (*l1client.BlockMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.blocks[blockID]
	if !ok {
		return nil, fmt.Errorf("block %s not found", blockID)
	}
	m := *meta
	return &m, nil
}

func (f *fakeL1) setBlock(blockID string, state l1client.BlockState, confirmations uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[blockID] = &l1client.BlockMetadata{BlockID: blockID, State: state, Confirmations: confirmations}
}
