package bridgeabi_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/poanetwork/layer-bridge/contract/bridgeabi"
)

func TestEventSignatures(t *testing.T) {
	t.Parallel()

	require.NotZero(t, bridgeabi.MessageSentEventSignature)
	require.NotZero(t, bridgeabi.MessageProcessedEventSignature)
	require.Equal(t, map[string]bool{
		bridgeabi.MessageSent:      true,
		bridgeabi.MessageProcessed: true,
		bridgeabi.MessageCanceled:  true,
		bridgeabi.SwapLocked:       true,
		bridgeabi.SwapCancelled:    true,
	}, bridgeabi.BridgeABI.AllEvents())
}

func TestMethods(t *testing.T) {
	t.Parallel()

	for _, name := range []string{
		"sendMessageToL1", "sendPrivateMessageToL1", "processMessageFromL1", "confirmL2ToL1Message",
		"cancelMessage", "getMessageDetails", "lockSwap", "cancelSwap", "getSwapStatus",
	} {
		require.Contains(t, bridgeabi.BridgeABI.Methods, name)
	}
}
