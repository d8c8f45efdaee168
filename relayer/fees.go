package relayer

import (
	"fmt"
	"math/big"

	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/entity"
)

// FeeSchedule prices a message by its payload and, for private messages, its proof size.
type FeeSchedule struct {
	BaseFee    *big.Int
	FeePerByte *big.Int
	ZKProofFee *big.Int
}

func NewFeeSchedule(cfg config.FeesConfig) FeeSchedule {
	return FeeSchedule{
		BaseFee:    cfg.BaseFee.Wei(),
		FeePerByte: cfg.FeePerByte.Wei(),
		ZKProofFee: cfg.ZKProofFee.Wei(),
	}
}

// Required returns baseFee + feePerByte*payloadLen, plus zkProofFee + feePerByte*proofLen
// when a proof is attached.
func (f FeeSchedule) Required(payloadLen, proofLen int) *big.Int {
	fee := new(big.Int).Mul(f.FeePerByte, big.NewInt(int64(payloadLen)))
	fee.Add(fee, f.BaseFee)
	if proofLen > 0 {
		fee.Add(fee, f.ZKProofFee)
		fee.Add(fee, new(big.Int).Mul(f.FeePerByte, big.NewInt(int64(proofLen))))
	}
	return fee
}

func (f FeeSchedule) Check(paid *big.Int, payloadLen, proofLen int) error {
	required := f.Required(payloadLen, proofLen)
	if paid == nil || paid.Cmp(required) < 0 {
		return fmt.Errorf("paid %s, required %s: %w", paid, required, entity.ErrInsufficientFee)
	}
	return nil
}
