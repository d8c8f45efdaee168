package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type LegStatus string

const (
	LegPending   LegStatus = "pending"
	LegConfirmed LegStatus = "confirmed"
	LegCancelled LegStatus = "cancelled"
	LegExpired   LegStatus = "expired"
	// LegUnknown marks a leg whose submission timed out.
	LegUnknown LegStatus = "unknown"
)

type SwapStatus string

const (
	SwapPending   SwapStatus = "pending"
	SwapCompleted SwapStatus = "completed"
	SwapCancelled SwapStatus = "cancelled"
	SwapExpired   SwapStatus = "expired"
)

func (s SwapStatus) IsFinal() bool {
	return s == SwapCompleted || s == SwapCancelled
}

type SwapRecord struct {
	SwapID        common.Hash    `db:"swap_id"`
	Initiator     string         `db:"initiator"`
	AmountL1      Wei            `db:"amount_l1"`
	RecipientL1   string         `db:"recipient_l1"`
	AmountL2      Wei            `db:"amount_l2"`
	RecipientL2   common.Address `db:"recipient_l2"`
	Timelock      time.Time      `db:"timelock"`
	L1Status      LegStatus      `db:"l1_status"`
	L2Status      LegStatus      `db:"l2_status"`
	Status        SwapStatus     `db:"status"`
	L1BlockID     *string        `db:"l1_block_id"`
	L2TxHash      *common.Hash   `db:"l2_tx_hash"`
	RefundPending bool           `db:"refund_pending"`
	RefundTxHash  *common.Hash   `db:"refund_tx_hash"`
	LastError     string         `db:"last_error"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// Expired reports whether the timelock passed while the swap is still open.
func (s *SwapRecord) Expired(now time.Time) bool {
	return s.Status == SwapPending && now.After(s.Timelock)
}

func (s *SwapRecord) Clone() *SwapRecord {
	c := *s
	c.AmountL1 = NewWei(&s.AmountL1.Int)
	c.AmountL2 = NewWei(&s.AmountL2.Int)
	if s.L1BlockID != nil {
		id := *s.L1BlockID
		c.L1BlockID = &id
	}
	if s.L2TxHash != nil {
		h := *s.L2TxHash
		c.L2TxHash = &h
	}
	if s.RefundTxHash != nil {
		h := *s.RefundTxHash
		c.RefundTxHash = &h
	}
	return &c
}

type SwapsRepo interface {
	Create(ctx context.Context, swap *SwapRecord) error
	GetByID(ctx context.Context, swapID common.Hash) (*SwapRecord, error)
	Update(ctx context.Context, swap *SwapRecord) error
	FindOpen(ctx context.Context, limit uint64) ([]*SwapRecord, error)
}
