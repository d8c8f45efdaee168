package presenter

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/poanetwork/layer-bridge/entity"
)

type UserMessagesResult struct {
	Address  string        `json:"address"`
	Messages []common.Hash `json:"messages"`
}

// SwapRequest amounts are decimal wei strings. Timelock is a unix timestamp.
type SwapRequest struct {
	Initiator   string `json:"initiator"`
	AmountL1    string `json:"amountL1"`
	RecipientL1 string `json:"recipientL1"`
	AmountL2    string `json:"amountL2"`
	RecipientL2 string `json:"recipientL2"`
	Timelock    *int64 `json:"timelock,omitempty"`
}

// SwapActionRequest authorizes a swap action. Signature is an EIP-191 signature over
// SwapActionDigest; the recovered signer is the caller.
type SwapActionRequest struct {
	Signature hexutil.Bytes `json:"signature"`
}

type SwapResult struct {
	SwapID    common.Hash       `json:"swapId"`
	Status    entity.SwapStatus `json:"status"`
	L1Status  entity.LegStatus  `json:"l1Status"`
	L2Status  entity.LegStatus  `json:"l2Status"`
	Timelock  time.Time         `json:"timelock"`
	L2TxHash  *common.Hash      `json:"l2TxHash,omitempty"`
	L1BlockID *string           `json:"l1BlockId,omitempty"`
}

type HealthResult struct {
	Healthy  bool                                 `json:"healthy"`
	Breakers []entity.CircuitBreakerState         `json:"breakers"`
	Nodes    map[string][]entity.NodeHealthRecord `json:"nodes"`
}
