package bridgeabi

//nolint:golint
import (
	_ "embed"

	"github.com/poanetwork/layer-bridge/contract/abi"
)

//go:embed bridge.json
var bridgeJSONABI string

const (
	MessageSent      = "event MessageSent(bytes32 indexed messageId, address indexed sender, string targetAddress, string messageType, bytes payload, uint256 timestamp, uint8 direction)"
	MessageProcessed = "event MessageProcessed(bytes32 indexed messageId, address indexed processor, uint256 timestamp, bool success, bool zkVerified)"
	MessageCanceled  = "event MessageCanceled(bytes32 indexed messageId, address indexed canceller, uint256 timestamp)"
	SwapLocked       = "event SwapLocked(bytes32 indexed swapId, address indexed recipient, uint256 amount, uint256 timelock)"
	SwapCancelled    = "event SwapCancelled(bytes32 indexed swapId, uint256 amount)"
)

var (
	BridgeABI = abi.MustReadABI(bridgeJSONABI)

	MessageSentEventSignature      = BridgeABI.Events["MessageSent"].ID
	MessageProcessedEventSignature = BridgeABI.Events["MessageProcessed"].ID
)
