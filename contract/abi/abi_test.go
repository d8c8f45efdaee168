package abi_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/poanetwork/layer-bridge/contract/abi"
	"github.com/poanetwork/layer-bridge/contract/bridgeabi"
)

var (
	canceledTopic   = crypto.Keccak256Hash([]byte("MessageCanceled(bytes32,address,uint256)"))
	swapLockedTopic = crypto.Keccak256Hash([]byte("SwapLocked(bytes32,address,uint256,uint256)"))
	messageID       = common.HexToHash("0x0101010101010101010101010101010101010101010101010101010101010101")
	aliceAddr       = common.HexToAddress("0x01")
	alice           = common.BytesToHash(aliceAddr.Bytes())
)

func TestABI_FindMatchingEventABI(t *testing.T) {
	t.Parallel()

	event := bridgeabi.BridgeABI.FindMatchingEventABI([]common.Hash{canceledTopic, messageID, alice})
	require.NotNil(t, event)
	require.Equal(t, "MessageCanceled", event.Name)
	require.Nil(t, bridgeabi.BridgeABI.FindMatchingEventABI([]common.Hash{canceledTopic, messageID}))
	require.Nil(t, bridgeabi.BridgeABI.FindMatchingEventABI([]common.Hash{canceledTopic, messageID, alice, alice}))
	event = bridgeabi.BridgeABI.FindMatchingEventABI([]common.Hash{swapLockedTopic, messageID, alice})
	require.NotNil(t, event)
	require.Equal(t, "SwapLocked", event.Name)
}

func TestABI_ParseLog(t *testing.T) {
	t.Parallel()

	value := big.NewInt(1700000000)
	word := common.BigToHash(value).Bytes()

	t.Run("should parse canceled event", func(t *testing.T) {
		t.Parallel()
		log := &types.Log{Topics: []common.Hash{canceledTopic, messageID, alice}, Data: word}
		event, data, err := bridgeabi.BridgeABI.ParseLog(log)
		require.NoError(t, err)
		require.Equal(t, bridgeabi.MessageCanceled, event)
		require.Equal(t, map[string]interface{}{
			"messageId": [32]byte(messageID),
			"canceller": aliceAddr,
			"timestamp": value,
		}, data)
	})

	t.Run("should parse swap lock", func(t *testing.T) {
		t.Parallel()
		log := &types.Log{Topics: []common.Hash{swapLockedTopic, messageID, alice}, Data: append(append([]byte{}, word...), word...)}
		event, data, err := bridgeabi.BridgeABI.ParseLog(log)
		require.NoError(t, err)
		require.Equal(t, bridgeabi.SwapLocked, event)
		require.Equal(t, value, data["amount"])
		require.Equal(t, value, data["timelock"])
	})

	t.Run("should not parse anonymous event", func(t *testing.T) {
		t.Parallel()
		event, data, err := bridgeabi.BridgeABI.ParseLog(&types.Log{Data: word})
		require.ErrorIs(t, err, abi.ErrInvalidEvent)
		require.Empty(t, event)
		require.Empty(t, data)
	})

	t.Run("should skip unknown event", func(t *testing.T) {
		t.Parallel()
		transfer := crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
		event, data, err := bridgeabi.BridgeABI.ParseLog(&types.Log{Topics: []common.Hash{transfer, alice, alice}, Data: word})
		require.NoError(t, err)
		require.Empty(t, event)
		require.Empty(t, data)
	})

	t.Run("should fail on truncated data", func(t *testing.T) {
		t.Parallel()
		log := &types.Log{Topics: []common.Hash{swapLockedTopic, messageID, alice}, Data: word}
		event, data, err := bridgeabi.BridgeABI.ParseLog(log)
		require.Error(t, err)
		require.Contains(t, err.Error(), "length insufficient")
		require.Empty(t, event)
		require.Empty(t, data)
	})
}
