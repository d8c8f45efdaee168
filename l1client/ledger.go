package l1client

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/poanetwork/layer-bridge/resilience"
)

// Ledger routes L1 calls across gateway endpoints with retry, timeout and failover.
type Ledger struct {
	clients map[string]Client
	exec    *resilience.Executor
}

func NewLedger(clients []Client, exec *resilience.Executor) *Ledger {
	m := make(map[string]Client, len(clients))
	for _, c := range clients {
		m[c.URL()] = c
	}
	return &Ledger{clients: m, exec: exec}
}

func (l *Ledger) client(endpoint string) (Client, error) {
	c, ok := l.clients[endpoint]
	if !ok {
		return nil, resilience.Permanent(fmt.Errorf("no l1 client for endpoint %s", endpoint))
	}
	return c, nil
}

// classify marks JSON-RPC application errors as permanent; transport errors stay retryable.
func classify(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return resilience.Permanent(err)
	}
	return err
}

func (l *Ledger) SubmitBlock(ctx context.Context, tag string, data []byte) (string, error) {
	return resilience.Submit(ctx, l.exec, func(ctx context.Context, endpoint string) (string, error) {
		c, err := l.client(endpoint)
		if err != nil {
			return "", err
		}
		id, err := c.SubmitBlock(ctx, tag, data)
		return id, classify(err)
	})
}

func (l *Ledger) Transfer(ctx context.Context, transfer *Transfer) (string, error) {
	return resilience.Submit(ctx, l.exec, func(ctx context.Context, endpoint string) (string, error) {
		c, err := l.client(endpoint)
		if err != nil {
			return "", err
		}
		id, err := c.Transfer(ctx, transfer)
		return id, classify(err)
	})
}

func (l *Ledger) BlockMetadata(ctx context.Context, blockID string) (*BlockMetadata, error) {
	return resilience.Call(ctx, l.exec, func(ctx context.Context, endpoint string) (*BlockMetadata, error) {
		c, err := l.client(endpoint)
		if err != nil {
			return nil, err
		}
		meta, err := c.BlockMetadata(ctx, blockID)
		return meta, classify(err)
	})
}

func (l *Ledger) BlocksByTag(ctx context.Context, tag string, fromIndex uint64, limit uint) ([]*TaggedBlock, error) {
	return resilience.Call(ctx, l.exec, func(ctx context.Context, endpoint string) ([]*TaggedBlock, error) {
		c, err := l.client(endpoint)
		if err != nil {
			return nil, err
		}
		blocks, err := c.BlocksByTag(ctx, tag, fromIndex, limit)
		return blocks, classify(err)
	})
}

func (l *Ledger) Probe(ctx context.Context, endpoint string) error {
	c, err := l.client(endpoint)
	if err != nil {
		return err
	}
	return c.Health(ctx)
}
