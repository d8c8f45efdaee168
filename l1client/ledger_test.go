package l1client_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/l1client"
	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/resilience"
)

type gatewayService struct {
	mu     sync.Mutex
	blocks []*l1client.TaggedBlock
	state  map[string]l1client.BlockState
}

func newGatewayService() *gatewayService {
	return &gatewayService{state: make(map[string]l1client.BlockState)}
}

func (s *gatewayService) SubmitBlock(tag string, data hexutil.Bytes) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("block-%d", len(s.blocks))
	s.blocks = append(s.blocks, &l1client.TaggedBlock{Index: uint64(len(s.blocks)), BlockID: id, Data: data, Timestamp: 1})
	s.state[id] = l1client.BlockPending
	return id, nil
}

func (s *gatewayService) Transfer(t l1client.Transfer) (string, error) {
	if t.Amount == "0" {
		return "", errors.New("zero amount")
	}
	return s.SubmitBlock(t.Tag, t.Metadata)
}

func (s *gatewayService) GetBlockMetadata(id string) (*l1client.BlockMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.state[id]
	if !ok {
		return nil, errors.New("unknown block")
	}
	return &l1client.BlockMetadata{BlockID: id, State: state, Confirmations: 3}, nil
}

func (s *gatewayService) GetBlocksByTag(tag string, from hexutil.Uint64, limit hexutil.Uint) ([]*l1client.TaggedBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*l1client.TaggedBlock
	for _, b := range s.blocks {
		if b.Index >= uint64(from) && len(res) < int(limit) {
			res = append(res, b)
		}
	}
	return res, nil
}

func (s *gatewayService) Health() map[string]bool {
	return map[string]bool{"healthy": true}
}

func newLedger(t *testing.T, svc *gatewayService) *l1client.Ledger {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("l1", svc))
	t.Cleanup(server.Stop)

	client := l1client.NewClientWithRPC("inproc", rpc.DialInProc(server), time.Second, 0)
	nodes := resilience.NewNodeManager("l1-"+t.Name(), []string{"inproc"}, config.NodeHealthConfig{FailureThreshold: 3, RecoveryInterval: time.Minute}, logging.Discard())
	exec := &resilience.Executor{
		Backoff: resilience.BackoffConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Timeout: time.Second,
		Nodes:   nodes,
	}
	return l1client.NewLedger([]l1client.Client{client}, exec)
}

func TestLedger(t *testing.T) {
	t.Parallel()

	svc := newGatewayService()
	ledger := newLedger(t, svc)
	ctx := context.Background()

	id, err := ledger.SubmitBlock(ctx, "bridge", []byte{0xca, 0xfe})
	require.NoError(t, err)
	require.Equal(t, "block-0", id)

	meta, err := ledger.BlockMetadata(ctx, id)
	require.NoError(t, err)
	require.Equal(t, l1client.BlockPending, meta.State)
	require.False(t, meta.IsFinal(1))

	svc.mu.Lock()
	svc.state[id] = l1client.BlockFinalized
	svc.mu.Unlock()
	meta, err = ledger.BlockMetadata(ctx, id)
	require.NoError(t, err)
	require.True(t, meta.IsFinal(3))
	require.False(t, meta.IsFinal(4))

	_, err = ledger.Transfer(ctx, &l1client.Transfer{Recipient: "l1xyz", Amount: "10", Tag: "swap", Metadata: []byte{1}})
	require.NoError(t, err)

	blocks, err := ledger.BlocksByTag(ctx, "bridge", 0, 10)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	require.Equal(t, hexutil.Bytes{0xca, 0xfe}, blocks[0].Data)

	require.NoError(t, ledger.Probe(ctx, "inproc"))
}

func TestLedger_ApplicationErrorIsPermanent(t *testing.T) {
	t.Parallel()

	ledger := newLedger(t, newGatewayService())
	_, err := ledger.Transfer(context.Background(), &l1client.Transfer{Recipient: "l1xyz", Amount: "0"})
	require.Error(t, err)
	require.True(t, resilience.IsPermanent(err))
}
