package relayer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/layer-bridge/contract"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/l1client"
)

const refundTag = "refund"

type ValueSender interface {
	Transfer(ctx context.Context, opts contract.TxOpts, to common.Address) (common.Hash, error)
}

// LedgerRefunder pays refunds on the chain where the fee was collected: an L1 transfer
// for L1->L2 messages and an L2 value transfer for L2->L1 messages.
type LedgerRefunder struct {
	l1 L1Ledger
	l2 ValueSender
}

func NewLedgerRefunder(l1 L1Ledger, l2 ValueSender) *LedgerRefunder {
	return &LedgerRefunder{l1: l1, l2: l2}
}

func (r *LedgerRefunder) Refund(ctx context.Context, msg *entity.BridgeMessage) (string, error) {
	if msg.Direction == entity.DirectionL1ToL2 {
		return r.l1.Transfer(ctx, &l1client.Transfer{
			Recipient: msg.Sender,
			Amount:    msg.Fee.String(),
			Tag:       refundTag,
			Metadata:  msg.MessageID.Bytes(),
		})
	}
	if !common.IsHexAddress(msg.Sender) {
		return "", fmt.Errorf("%w: refund recipient %q", entity.ErrValidation, msg.Sender)
	}
	txHash, err := r.l2.Transfer(ctx, contract.TxOpts{Value: feeOf(msg)}, common.HexToAddress(msg.Sender))
	if err != nil {
		return "", err
	}
	return txHash.Hex(), nil
}
