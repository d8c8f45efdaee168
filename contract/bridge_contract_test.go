package contract_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/contract"
	"github.com/poanetwork/layer-bridge/contract/bridgeabi"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/ethclient"
	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/resilience"
)

var bridgeAddr = common.HexToAddress("0xB1D6E00000000000000000000000000000000001")

type fakeClient struct {
	mu       sync.Mutex
	url      string
	sendErr  error
	sent     []*types.Transaction
	callData []byte
	callRes  []byte
}

func (c *fakeClient) URL() string {
	return c.url
}

func (c *fakeClient) ChainID() *big.Int {
	return big.NewInt(77)
}

func (c *fakeClient) BlockNumber(context.Context) (uint64, error) {
	return 100, nil
}

func (c *fakeClient) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (c *fakeClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (c *fakeClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (c *fakeClient) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 90_000, nil
}

func (c *fakeClient) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, tx)
	return c.sendErr
}

func (c *fakeClient) TransactionReceiptByHash(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, nil
}

func (c *fakeClient) CallContract(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callData = msg.Data
	return c.callRes, nil
}

func newBridge(t *testing.T, clients ...*fakeClient) *contract.BridgeContract {
	t.Helper()
	urls := make([]string, 0, len(clients))
	for _, c := range clients {
		urls = append(urls, c.url)
	}
	nodes := resilience.NewNodeManager("l2-"+t.Name(), urls, config.NodeHealthConfig{FailureThreshold: 1, RecoveryInterval: time.Minute}, logging.Discard())
	exec := &resilience.Executor{
		Backoff: resilience.BackoffConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Timeout: time.Second,
		Nodes:   nodes,
	}
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	ifaces := make([]ethclient.Client, 0, len(clients))
	for _, c := range clients {
		ifaces = append(ifaces, c)
	}
	return contract.NewBridgeContract(bridgeAddr, ifaces, exec, func(c *contract.Contract) *contract.Transactor {
		return contract.NewTransactor(c, key, big.NewInt(77), logging.Discard())
	})
}

func TestBridgeContract_Transact(t *testing.T) {
	t.Parallel()

	bad := &fakeClient{url: "http://bad", sendErr: errors.New("connection refused")}
	good := &fakeClient{url: "http://good"}
	bridge := newBridge(t, bad, good)

	var recorded common.Hash
	msg := &entity.BridgeMessage{
		Sender:      "l1sender",
		MessageType: entity.MessageTypeRiskScoreUpdate,
		Payload:     []byte{1, 2, 3},
		Timestamp:   1_700_000_000,
		GasLimit:    500_000,
	}
	txHash, err := bridge.ProcessMessageFromL1(context.Background(), msg, [][]byte{make([]byte, 65)}, func(h common.Hash) error {
		recorded = h
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, recorded, txHash)
	require.Len(t, good.sent, 1)
	tx := good.sent[0]
	require.Equal(t, txHash, tx.Hash())
	require.EqualValues(t, 7, tx.Nonce())
	require.EqualValues(t, 500_000, tx.Gas())
	require.Equal(t, bridgeAddr, *tx.To())

	for _, sent := range bad.sent {
		require.Equal(t, txHash, sent.Hash(), "retries must broadcast the same signed transaction")
	}

	method, err := bridgeabi.BridgeABI.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	require.Equal(t, "processMessageFromL1", method.Name)
}

func TestBridgeContract_AbortOnRecordFailure(t *testing.T) {
	t.Parallel()

	client := &fakeClient{url: "http://node"}
	bridge := newBridge(t, client)
	errStore := errors.New("db down")
	_, err := bridge.CancelSwap(context.Background(), common.Hash{1}, func(common.Hash) error {
		return errStore
	})
	require.ErrorIs(t, err, errStore)
	require.Empty(t, client.sent)
}

func TestBridgeContract_GetMessageDetails(t *testing.T) {
	t.Parallel()

	sender := common.HexToAddress("0xAA")
	out, err := bridgeabi.BridgeABI.Methods["getMessageDetails"].Outputs.Pack(
		uint8(entity.StatusProcessed), sender, big.NewInt(1234), "RISK_SCORE_UPDATE", true)
	require.NoError(t, err)
	client := &fakeClient{url: "http://node", callRes: out}
	bridge := newBridge(t, client)

	details, err := bridge.GetMessageDetails(context.Background(), common.Hash{2})
	require.NoError(t, err)
	require.Equal(t, &contract.MessageDetails{
		Status:        entity.StatusProcessed,
		Sender:        sender,
		Timestamp:     1234,
		MessageType:   entity.MessageTypeRiskScoreUpdate,
		ProofVerified: true,
	}, details)
}

func TestBridgeContract_ParseProcessed(t *testing.T) {
	t.Parallel()

	bridge := newBridge(t, &fakeClient{url: "http://node"})
	messageID := common.Hash{0xab}
	processor := common.HexToAddress("0x01")
	event := bridgeabi.BridgeABI.Events["MessageProcessed"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(10), true, false)
	require.NoError(t, err)

	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: common.HexToAddress("0x02"), Topics: []common.Hash{event.ID, messageID, common.BytesToHash(processor.Bytes())}, Data: data},
		{Address: bridgeAddr, Topics: []common.Hash{event.ID, messageID, common.BytesToHash(processor.Bytes())}, Data: data},
	}}
	res, err := bridge.ParseProcessed(receipt)
	require.NoError(t, err)
	require.Equal(t, &contract.ProcessedEvent{
		MessageID: messageID,
		Processor: processor,
		Success:   true,
	}, res)

	res, err = bridge.ParseProcessed(&types.Receipt{})
	require.NoError(t, err)
	require.Nil(t, res)
}
