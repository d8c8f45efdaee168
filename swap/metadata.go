package swap

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/layer-bridge/entity"
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// metadataArgs is the layout of the L1 transfer metadata:
// (swapId, l2 recipient, l2 amount, timelock).
var metadataArgs = abi.Arguments{
	{Type: mustType("bytes32")},
	{Type: mustType("address")},
	{Type: mustType("uint256")},
	{Type: mustType("uint64")},
}

type Metadata struct {
	SwapID      common.Hash
	RecipientL2 common.Address
	AmountL2    *big.Int
	Timelock    uint64
}

func EncodeMetadata(swap *entity.SwapRecord) ([]byte, error) {
	data, err := metadataArgs.Pack(swap.SwapID, swap.RecipientL2, swap.AmountL2.BigInt(), uint64(swap.Timelock.Unix()))
	if err != nil {
		return nil, fmt.Errorf("can't encode swap metadata: %w", err)
	}
	return data, nil
}

func DecodeMetadata(data []byte) (*Metadata, error) {
	values, err := metadataArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("can't decode swap metadata: %w", err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("swap metadata has %d values", len(values))
	}
	id, ok1 := values[0].([32]byte)
	recipient, ok2 := values[1].(common.Address)
	amount, ok3 := values[2].(*big.Int)
	timelock, ok4 := values[3].(uint64)
	if !(ok1 && ok2 && ok3 && ok4) {
		return nil, fmt.Errorf("swap metadata has unexpected types")
	}
	return &Metadata{
		SwapID:      id,
		RecipientL2: recipient,
		AmountL2:    amount,
		Timelock:    timelock,
	}, nil
}
