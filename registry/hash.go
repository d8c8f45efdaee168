package registry

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/poanetwork/layer-bridge/entity"
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

var (
	stringType  = mustType("string")
	bytes32Type = mustType("bytes32")
	uint256Type = mustType("uint256")

	commitmentArgs = abi.Arguments{
		{Type: stringType},  // sender
		{Type: stringType},  // target
		{Type: stringType},  // message type
		{Type: bytes32Type}, // payload hash
		{Type: bytes32Type}, // proof hash, zero when absent
		{Type: uint256Type}, // timestamp
	}
	messageIDArgs = abi.Arguments{
		{Type: stringType},
		{Type: stringType},
		{Type: stringType},
		{Type: bytes32Type},
		{Type: bytes32Type}, // commitment
		{Type: uint256Type},
		{Type: uint256Type}, // sequence
	}
)

func hashOrZero(b []byte) common.Hash {
	if len(b) == 0 {
		return common.Hash{}
	}
	return crypto.Keccak256Hash(b)
}

// CommitmentHash binds the message content and timestamp. It is consumed at most once.
func CommitmentHash(sender, target string, msgType entity.MessageType, payload, proof []byte, timestamp uint64) common.Hash {
	packed, err := commitmentArgs.Pack(sender, target, string(msgType),
		crypto.Keccak256Hash(payload), hashOrZero(proof), new(big.Int).SetUint64(timestamp))
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(packed)
}

func MessageID(sender, target string, msgType entity.MessageType, payload []byte, commitment common.Hash, timestamp, sequence uint64) common.Hash {
	packed, err := messageIDArgs.Pack(sender, target, string(msgType), crypto.Keccak256Hash(payload),
		commitment, new(big.Int).SetUint64(timestamp), new(big.Int).SetUint64(sequence))
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(packed)
}

// ConfirmationDigest is the value oracles sign when attesting the L1 outcome of an L2->L1 message.
func ConfirmationDigest(messageID common.Hash, success bool) common.Hash {
	flag := byte(0)
	if success {
		flag = 1
	}
	return crypto.Keccak256Hash(messageID.Bytes(), []byte{flag})
}
