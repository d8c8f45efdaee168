package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/poanetwork/layer-bridge/contract/abi"
	"github.com/poanetwork/layer-bridge/ethclient"
	"github.com/poanetwork/layer-bridge/resilience"
)

// Contract routes calls to one of several endpoints through the resilience executor.
type Contract struct {
	address common.Address
	abi     abi.ABI
	clients map[string]ethclient.Client
	exec    *resilience.Executor
}

func NewContract(addr common.Address, contractABI abi.ABI, clients []ethclient.Client, exec *resilience.Executor) *Contract {
	m := make(map[string]ethclient.Client, len(clients))
	for _, c := range clients {
		m[c.URL()] = c
	}
	return &Contract{address: addr, abi: contractABI, clients: m, exec: exec}
}

func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) client(endpoint string) (ethclient.Client, error) {
	client, ok := c.clients[endpoint]
	if !ok {
		return nil, resilience.Permanent(fmt.Errorf("no client for endpoint %s", endpoint))
	}
	return client, nil
}

// Call performs a read-only contract call and unpacks its outputs.
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot encode abi calldata: %w", err)
	}
	res, err := resilience.Call(ctx, c.exec, func(ctx context.Context, endpoint string) ([]byte, error) {
		client, err := c.client(endpoint)
		if err != nil {
			return nil, err
		}
		res, err := client.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data})
		if ethclient.IsNonRetryable(err) {
			return nil, resilience.Permanent(err)
		}
		return res, err
	})
	if err != nil {
		return nil, fmt.Errorf("cannot call %s(...): %w", method, err)
	}
	out, err := c.abi.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %s(...) result: %w", method, err)
	}
	return out, nil
}

// Receipt returns the receipt of a mined transaction, or nil if it is not mined yet.
func (c *Contract) Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return resilience.Call(ctx, c.exec, func(ctx context.Context, endpoint string) (*types.Receipt, error) {
		client, err := c.client(endpoint)
		if err != nil {
			return nil, err
		}
		return client.TransactionReceiptByHash(ctx, txHash)
	})
}

func (c *Contract) BlockNumber(ctx context.Context) (uint64, error) {
	return resilience.Call(ctx, c.exec, func(ctx context.Context, endpoint string) (uint64, error) {
		client, err := c.client(endpoint)
		if err != nil {
			return 0, err
		}
		return client.BlockNumber(ctx)
	})
}

// FilterLogs returns the contract logs matching topic0 in the block range.
func (c *Contract) FilterLogs(ctx context.Context, topic common.Hash, from, to uint64) ([]types.Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{topic}},
	}
	return resilience.Call(ctx, c.exec, func(ctx context.Context, endpoint string) ([]types.Log, error) {
		client, err := c.client(endpoint)
		if err != nil {
			return nil, err
		}
		return client.FilterLogs(ctx, q)
	})
}

// Probe checks a single endpoint, used for node recovery.
func (c *Contract) Probe(ctx context.Context, endpoint string) error {
	client, err := c.client(endpoint)
	if err != nil {
		return err
	}
	_, err = client.BlockNumber(ctx)
	return err
}

func (c *Contract) ParseLog(log *types.Log) (string, map[string]interface{}, error) {
	return c.abi.ParseLog(log)
}
