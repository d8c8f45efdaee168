package contract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/poanetwork/layer-bridge/contract/bridgeabi"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/ethclient"
	"github.com/poanetwork/layer-bridge/resilience"
)

var ErrUnexpectedResult = errors.New("unexpected contract call result")

// EscrowStatus is the swap escrow state reported by the bridge contract.
type EscrowStatus uint8

const (
	EscrowNone EscrowStatus = iota
	EscrowLocked
	EscrowClaimed
	EscrowRefunded
)

func (s EscrowStatus) String() string {
	switch s {
	case EscrowNone:
		return "none"
	case EscrowLocked:
		return "locked"
	case EscrowClaimed:
		return "claimed"
	case EscrowRefunded:
		return "refunded"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

type MessageDetails struct {
	Status        entity.MessageStatus
	Sender        common.Address
	Timestamp     uint64
	MessageType   entity.MessageType
	ProofVerified bool
}

type ProcessedEvent struct {
	MessageID  common.Hash
	Processor  common.Address
	Success    bool
	ZKVerified bool
}

type SentEvent struct {
	MessageID     common.Hash
	Sender        common.Address
	TargetAddress string
	MessageType   entity.MessageType
	Payload       []byte
	Timestamp     uint64
	Direction     entity.Direction
	TxHash        common.Hash
	BlockNumber   uint64
}

type BridgeContract struct {
	*Contract
	tx *Transactor
}

func NewBridgeContract(addr common.Address, clients []ethclient.Client, exec *resilience.Executor, tx func(*Contract) *Transactor) *BridgeContract {
	c := NewContract(addr, bridgeabi.BridgeABI, clients, exec)
	b := &BridgeContract{Contract: c}
	if tx != nil {
		b.tx = tx(c)
	}
	return b
}

func (c *BridgeContract) Transactor() *Transactor {
	return c.tx
}

// JoinSignatures concatenates 65 byte oracle signatures into the contract's attestation blob.
func JoinSignatures(sigs [][]byte) []byte {
	return bytes.Join(sigs, nil)
}

func (c *BridgeContract) ProcessMessageFromL1(ctx context.Context, msg *entity.BridgeMessage, sigs [][]byte, onSigned func(common.Hash) error) (common.Hash, error) {
	return c.tx.Transact(ctx, TxOpts{GasLimit: msg.GasLimit, OnSigned: onSigned}, "processMessageFromL1",
		msg.Sender, string(msg.MessageType), msg.Payload, new(big.Int).SetUint64(msg.Timestamp), JoinSignatures(sigs))
}

func (c *BridgeContract) ConfirmL2ToL1Message(ctx context.Context, messageID common.Hash, success bool, sigs [][]byte, onSigned func(common.Hash) error) (common.Hash, error) {
	return c.tx.Transact(ctx, TxOpts{OnSigned: onSigned}, "confirmL2ToL1Message", messageID, success, JoinSignatures(sigs))
}

func (c *BridgeContract) CancelMessage(ctx context.Context, messageID common.Hash) (common.Hash, error) {
	return c.tx.Transact(ctx, TxOpts{}, "cancelMessage", messageID)
}

func (c *BridgeContract) LockSwap(ctx context.Context, swapID common.Hash, recipient common.Address, timelock time.Time, amount *big.Int, onSigned func(common.Hash) error) (common.Hash, error) {
	return c.tx.Transact(ctx, TxOpts{Value: amount, OnSigned: onSigned}, "lockSwap",
		swapID, recipient, big.NewInt(timelock.Unix()))
}

func (c *BridgeContract) CancelSwap(ctx context.Context, swapID common.Hash, onSigned func(common.Hash) error) (common.Hash, error) {
	return c.tx.Transact(ctx, TxOpts{OnSigned: onSigned}, "cancelSwap", swapID)
}

func (c *BridgeContract) GetMessageDetails(ctx context.Context, messageID common.Hash) (*MessageDetails, error) {
	res, err := c.Call(ctx, "getMessageDetails", messageID)
	if err != nil {
		return nil, err
	}
	if len(res) != 5 {
		return nil, fmt.Errorf("getMessageDetails returned %d values: %w", len(res), ErrUnexpectedResult)
	}
	status, ok1 := res[0].(uint8)
	sender, ok2 := res[1].(common.Address)
	ts, ok3 := res[2].(*big.Int)
	msgType, ok4 := res[3].(string)
	verified, ok5 := res[4].(bool)
	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		return nil, fmt.Errorf("getMessageDetails: %w", ErrUnexpectedResult)
	}
	return &MessageDetails{
		Status:        entity.MessageStatus(status),
		Sender:        sender,
		Timestamp:     ts.Uint64(),
		MessageType:   entity.MessageType(msgType),
		ProofVerified: verified,
	}, nil
}

func (c *BridgeContract) GetSwapStatus(ctx context.Context, swapID common.Hash) (EscrowStatus, error) {
	res, err := c.Call(ctx, "getSwapStatus", swapID)
	if err != nil {
		return EscrowNone, err
	}
	if len(res) != 1 {
		return EscrowNone, fmt.Errorf("getSwapStatus returned %d values: %w", len(res), ErrUnexpectedResult)
	}
	status, ok := res[0].(uint8)
	if !ok {
		return EscrowNone, fmt.Errorf("getSwapStatus: %w", ErrUnexpectedResult)
	}
	return EscrowStatus(status), nil
}

// ParseProcessed extracts the MessageProcessed event emitted by this contract in receipt.
func (c *BridgeContract) ParseProcessed(receipt *types.Receipt) (*ProcessedEvent, error) {
	for _, log := range receipt.Logs {
		if log.Address != c.address || len(log.Topics) == 0 || log.Topics[0] != bridgeabi.MessageProcessedEventSignature {
			continue
		}
		event, data, err := c.ParseLog(log)
		if err != nil {
			return nil, err
		}
		if event != bridgeabi.MessageProcessed {
			continue
		}
		return &ProcessedEvent{
			MessageID:  data["messageId"].([32]byte),
			Processor:  data["processor"].(common.Address),
			Success:    data["success"].(bool),
			ZKVerified: data["zkVerified"].(bool),
		}, nil
	}
	return nil, nil
}

// MessageSentEvents returns MessageSent events emitted in the block range.
func (c *BridgeContract) MessageSentEvents(ctx context.Context, from, to uint64) ([]*SentEvent, error) {
	logs, err := c.FilterLogs(ctx, bridgeabi.MessageSentEventSignature, from, to)
	if err != nil {
		return nil, fmt.Errorf("can't fetch MessageSent logs: %w", err)
	}
	res := make([]*SentEvent, 0, len(logs))
	for i := range logs {
		event, data, err := c.ParseLog(&logs[i])
		if err != nil {
			return nil, err
		}
		if event != bridgeabi.MessageSent {
			continue
		}
		res = append(res, &SentEvent{
			MessageID:     data["messageId"].([32]byte),
			Sender:        data["sender"].(common.Address),
			TargetAddress: data["targetAddress"].(string),
			MessageType:   entity.MessageType(data["messageType"].(string)),
			Payload:       data["payload"].([]byte),
			Timestamp:     data["timestamp"].(*big.Int).Uint64(),
			Direction:     entity.Direction(data["direction"].(uint8)),
			TxHash:        logs[i].TxHash,
			BlockNumber:   logs[i].BlockNumber,
		})
	}
	return res, nil
}
