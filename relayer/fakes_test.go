package relayer_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/poanetwork/layer-bridge/contract"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/l1client"
	"github.com/poanetwork/layer-bridge/pubsub"
)

var errNetwork = errors.New("connection refused")

type fakeL2 struct {
	mu        sync.Mutex
	txCount   int64
	submitErr error
	submitted []*entity.BridgeMessage
	signed    [][][]byte
	receipts  map[common.Hash]*types.Receipt
	processed map[common.Hash]*contract.ProcessedEvent
	details   map[common.Hash]*contract.MessageDetails
	confirmed map[common.Hash]bool
	canceled  []common.Hash
	sent      []*contract.SentEvent
	head      uint64
}

func newFakeL2() *fakeL2 {
	return &fakeL2{
		receipts:  make(map[common.Hash]*types.Receipt),
		processed: make(map[common.Hash]*contract.ProcessedEvent),
		details:   make(map[common.Hash]*contract.MessageDetails),
		confirmed: make(map[common.Hash]bool),
	}
}

func (l *fakeL2) nextTx() common.Hash {
	l.txCount++
	return common.BigToHash(big.NewInt(l.txCount))
}

func (l *fakeL2) ProcessMessageFromL1(_ context.Context, msg *entity.BridgeMessage, sigs [][]byte, onSigned func(common.Hash) error) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	txHash := l.nextTx()
	if onSigned != nil {
		if err := onSigned(txHash); err != nil {
			return common.Hash{}, err
		}
	}
	if l.submitErr != nil {
		return txHash, l.submitErr
	}
	l.submitted = append(l.submitted, msg.Clone())
	l.signed = append(l.signed, sigs)
	return txHash, nil
}

func (l *fakeL2) ConfirmL2ToL1Message(_ context.Context, messageID common.Hash, success bool, _ [][]byte, _ func(common.Hash) error) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirmed[messageID] = success
	return l.nextTx(), nil
}

func (l *fakeL2) CancelMessage(_ context.Context, messageID common.Hash) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.canceled = append(l.canceled, messageID)
	return l.nextTx(), nil
}

func (l *fakeL2) GetMessageDetails(_ context.Context, messageID common.Hash) (*contract.MessageDetails, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d, ok := l.details[messageID]; ok {
		return d, nil
	}
	return &contract.MessageDetails{}, nil
}

func (l *fakeL2) Receipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.receipts[txHash], nil
}

func (l *fakeL2) ParseProcessed(receipt *types.Receipt) (*contract.ProcessedEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.processed[receipt.TxHash], nil
}

func (l *fakeL2) BlockNumber(context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head, nil
}

func (l *fakeL2) MessageSentEvents(_ context.Context, from, to uint64) ([]*contract.SentEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var res []*contract.SentEvent
	for _, e := range l.sent {
		if e.BlockNumber >= from && e.BlockNumber <= to {
			res = append(res, e)
		}
	}
	return res, nil
}

// mine records a successful receipt for txHash carrying a MessageProcessed event.
func (l *fakeL2) mine(txHash, remoteID common.Hash, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receipts[txHash] = &types.Receipt{TxHash: txHash, Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(10)}
	l.processed[txHash] = &contract.ProcessedEvent{MessageID: remoteID, Success: success}
}

type fakeL1 struct {
	mu        sync.Mutex
	submitErr error
	submitted [][]byte
	transfers []*l1client.Transfer
	blocks    []*l1client.TaggedBlock
	meta      map[string]*l1client.BlockMetadata
}

func newFakeL1() *fakeL1 {
	return &fakeL1{meta: make(map[string]*l1client.BlockMetadata)}
}

func (l *fakeL1) SubmitBlock(_ context.Context, _ string, data []byte) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.submitErr != nil {
		return "", l.submitErr
	}
	l.submitted = append(l.submitted, data)
	return common.BigToHash(big.NewInt(int64(len(l.submitted)))).Hex(), nil
}

func (l *fakeL1) Transfer(_ context.Context, transfer *l1client.Transfer) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transfers = append(l.transfers, transfer)
	return "transfer", nil
}

func (l *fakeL1) BlockMetadata(_ context.Context, blockID string) (*l1client.BlockMetadata, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.meta[blockID]; ok {
		return m, nil
	}
	return &l1client.BlockMetadata{BlockID: blockID, State: l1client.BlockPending}, nil
}

func (l *fakeL1) BlocksByTag(_ context.Context, _ string, fromIndex uint64, limit uint) ([]*l1client.TaggedBlock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var res []*l1client.TaggedBlock
	for _, b := range l.blocks {
		if b.Index >= fromIndex && uint(len(res)) < limit {
			res = append(res, b)
		}
	}
	return res, nil
}

type fakeRefunder struct {
	mu       sync.Mutex
	delay    time.Duration
	entered  chan struct{}
	hold     chan struct{}
	refunded []*entity.BridgeMessage
}

func (r *fakeRefunder) Refund(_ context.Context, msg *entity.BridgeMessage) (string, error) {
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.hold != nil {
		<-r.hold
	}
	time.Sleep(r.delay)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refunded = append(r.refunded, msg.Clone())
	return "refund", nil
}

func (r *fakeRefunder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refunded)
}

type failingChannel struct{}

func (failingChannel) Publish(context.Context, string, []byte) error {
	return errNetwork
}

func (failingChannel) Subscribe(context.Context, string) (<-chan pubsub.Delivery, error) {
	return nil, errNetwork
}

func (failingChannel) Close() error {
	return nil
}
