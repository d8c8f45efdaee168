package relayer

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/layer-bridge/entity"
)

var ErrInvalidPayload = errors.New("invalid payload")

const maxRiskScore = 100

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

var (
	addressType = mustType("address")
	uint8Type   = mustType("uint8")
	uint256Type = mustType("uint256")
	bytes32Type = mustType("bytes32")
	bytesType   = mustType("bytes")

	payloadArgs = map[entity.MessageType]abi.Arguments{
		entity.MessageTypeRiskScoreUpdate: {{Type: addressType}, {Type: uint8Type}},
		entity.MessageTypeTokenTransfer:   {{Type: addressType}, {Type: uint256Type}},
		entity.MessageTypeIdentityUpdate:  {{Type: addressType}, {Type: bytes32Type}},
		entity.MessageTypeContractCall:    {{Type: addressType}, {Type: bytesType}},
	}
)

// Payload is the decoded body of a known message type.
type Payload interface {
	Type() entity.MessageType
	values() []interface{}
}

type RiskScoreUpdate struct {
	User  common.Address
	Score uint8
}

func (RiskScoreUpdate) Type() entity.MessageType { return entity.MessageTypeRiskScoreUpdate }
func (p RiskScoreUpdate) values() []interface{}  { return []interface{}{p.User, p.Score} }

type TokenTransfer struct {
	Recipient common.Address
	Amount    *big.Int
}

func (TokenTransfer) Type() entity.MessageType { return entity.MessageTypeTokenTransfer }
func (p TokenTransfer) values() []interface{}  { return []interface{}{p.Recipient, p.Amount} }

type IdentityUpdate struct {
	User         common.Address
	IdentityHash common.Hash
}

func (IdentityUpdate) Type() entity.MessageType { return entity.MessageTypeIdentityUpdate }
func (p IdentityUpdate) values() []interface{}  { return []interface{}{p.User, p.IdentityHash} }

type ContractCall struct {
	Target common.Address
	Data   []byte
}

func (ContractCall) Type() entity.MessageType { return entity.MessageTypeContractCall }
func (p ContractCall) values() []interface{}  { return []interface{}{p.Target, p.Data} }

func EncodePayload(p Payload) ([]byte, error) {
	args, ok := payloadArgs[p.Type()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p.Type(), entity.ErrUnknownMessageType)
	}
	return args.Pack(p.values()...)
}

// DecodePayload parses data as the body of msgType. Unknown types fail with
// entity.ErrUnknownMessageType, malformed bodies with ErrInvalidPayload.
func DecodePayload(msgType entity.MessageType, data []byte) (Payload, error) {
	args, ok := payloadArgs[msgType]
	if !ok {
		return nil, fmt.Errorf("%s: %w", msgType, entity.ErrUnknownMessageType)
	}
	values, err := args.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", msgType, ErrInvalidPayload, err)
	}
	switch msgType {
	case entity.MessageTypeRiskScoreUpdate:
		p := RiskScoreUpdate{User: values[0].(common.Address), Score: values[1].(uint8)}
		if p.Score > maxRiskScore {
			return nil, fmt.Errorf("risk score %d is above %d: %w", p.Score, maxRiskScore, ErrInvalidPayload)
		}
		return p, nil
	case entity.MessageTypeTokenTransfer:
		return TokenTransfer{Recipient: values[0].(common.Address), Amount: values[1].(*big.Int)}, nil
	case entity.MessageTypeIdentityUpdate:
		return IdentityUpdate{User: values[0].(common.Address), IdentityHash: values[1].([32]byte)}, nil
	default:
		return ContractCall{Target: values[0].(common.Address), Data: values[1].([]byte)}, nil
	}
}
