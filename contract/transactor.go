package contract

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sirupsen/logrus"

	"github.com/poanetwork/layer-bridge/ethclient"
	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/resilience"
)

type TxOpts struct {
	Value    *big.Int
	GasLimit uint64
	// OnSigned is called with the transaction hash before broadcast. An error aborts the send.
	OnSigned func(txHash common.Hash) error
}

// Transactor signs and broadcasts contract transactions from a single account.
type Transactor struct {
	mu       sync.Mutex
	contract *Contract
	key      *ecdsa.PrivateKey
	from     common.Address
	signer   types.Signer
	logger   logging.Logger
}

func NewTransactor(contract *Contract, key *ecdsa.PrivateKey, chainID *big.Int, logger logging.Logger) *Transactor {
	from := crypto.PubkeyToAddress(key.PublicKey)
	return &Transactor{
		contract: contract,
		key:      key,
		from:     from,
		signer:   types.LatestSignerForChainID(chainID),
		logger:   logger.WithField("from", from),
	}
}

func (t *Transactor) From() common.Address {
	return t.from
}

// Transact builds, signs and broadcasts a call to method. The returned hash is known
// even when the broadcast outcome is unknown, so callers can reconcile by receipt.
func (t *Transactor) Transact(ctx context.Context, opts TxOpts, method string, args ...interface{}) (common.Hash, error) {
	data, err := t.contract.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot encode abi calldata: %w", err)
	}
	return t.send(ctx, opts, t.contract.address, method, data)
}

// Transfer sends opts.Value from the transactor account to a plain address.
func (t *Transactor) Transfer(ctx context.Context, opts TxOpts, to common.Address) (common.Hash, error) {
	if opts.GasLimit == 0 {
		opts.GasLimit = params.TxGas
	}
	return t.send(ctx, opts, to, "transfer", nil)
}

func (t *Transactor) send(ctx context.Context, opts TxOpts, to common.Address, method string, data []byte) (common.Hash, error) {
	value := opts.Value
	if value == nil {
		value = new(big.Int)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	exec := t.contract.exec
	nonce, err := resilience.Call(ctx, exec, func(ctx context.Context, endpoint string) (uint64, error) {
		client, err := t.contract.client(endpoint)
		if err != nil {
			return 0, err
		}
		return client.PendingNonceAt(ctx, t.from)
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't get nonce: %w", err)
	}
	gasPrice, err := resilience.Call(ctx, exec, func(ctx context.Context, endpoint string) (*big.Int, error) {
		client, err := t.contract.client(endpoint)
		if err != nil {
			return nil, err
		}
		return client.SuggestGasPrice(ctx)
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't get gas price: %w", err)
	}
	gas := opts.GasLimit
	if gas == 0 {
		msg := ethereum.CallMsg{From: t.from, To: &to, Value: value, Data: data, GasPrice: gasPrice}
		gas, err = resilience.Call(ctx, exec, func(ctx context.Context, endpoint string) (uint64, error) {
			client, err := t.contract.client(endpoint)
			if err != nil {
				return 0, err
			}
			gas, err := client.EstimateGas(ctx, msg)
			if ethclient.IsNonRetryable(err) {
				return 0, resilience.Permanent(err)
			}
			return gas, err
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("can't estimate gas for %s: %w", method, err)
		}
	}

	tx, err := types.SignNewTx(t.key, t.signer, &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't sign transaction: %w", err)
	}
	txHash := tx.Hash()
	if opts.OnSigned != nil {
		if err = opts.OnSigned(txHash); err != nil {
			return common.Hash{}, err
		}
	}

	logger := t.logger.WithFields(logrus.Fields{
		"method":  method,
		"tx_hash": txHash,
		"nonce":   nonce,
	})
	_, err = resilience.Submit(ctx, exec, func(ctx context.Context, endpoint string) (struct{}, error) {
		client, err := t.contract.client(endpoint)
		if err != nil {
			return struct{}{}, err
		}
		err = client.SendTransaction(ctx, tx)
		if ethclient.IsAlreadyKnown(err) {
			return struct{}{}, nil
		}
		if ethclient.IsNonRetryable(err) {
			return struct{}{}, resilience.Permanent(err)
		}
		return struct{}{}, err
	})
	if err != nil {
		logger.WithError(err).Warn("transaction broadcast failed")
		return txHash, fmt.Errorf("can't send %s transaction: %w", method, err)
	}
	logger.Info("transaction sent")
	return txHash, nil
}
