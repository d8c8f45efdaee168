package swap

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/layer-bridge/contract"
	"github.com/poanetwork/layer-bridge/entity"
)

type StatusSource string

const (
	SourceRegistry StatusSource = "registry"
	SourceCache    StatusSource = "cache"
	SourceEscrow   StatusSource = "escrow"
	SourceL1       StatusSource = "l1"
)

// Status is the merged view of a swap. Sources lists every record that contributed.
type Status struct {
	SwapID          common.Hash       `json:"swapId"`
	Status          entity.SwapStatus `json:"status"`
	L1Status        entity.LegStatus  `json:"l1Status"`
	L2Status        entity.LegStatus  `json:"l2Status"`
	Initiator       string            `json:"initiator"`
	AmountL1        string            `json:"amountL1"`
	RecipientL1     string            `json:"recipientL1"`
	AmountL2        string            `json:"amountL2"`
	RecipientL2     common.Address    `json:"recipientL2"`
	Timelock        time.Time         `json:"timelock"`
	L1BlockID       *string           `json:"l1BlockId,omitempty"`
	L1Confirmations *uint64           `json:"l1Confirmations,omitempty"`
	L2TxHash        *common.Hash      `json:"l2TxHash,omitempty"`
	Escrow          string            `json:"escrow,omitempty"`
	RefundPending   bool              `json:"refundPending"`
	RefundTxHash    *common.Hash      `json:"refundTxHash,omitempty"`
	LastError       string            `json:"lastError,omitempty"`
	Sources         []StatusSource    `json:"sources"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func newStatus(swap *entity.SwapRecord, source StatusSource) *Status {
	return &Status{
		SwapID:        swap.SwapID,
		Status:        swap.Status,
		L1Status:      swap.L1Status,
		L2Status:      swap.L2Status,
		Initiator:     swap.Initiator,
		AmountL1:      swap.AmountL1.String(),
		RecipientL1:   swap.RecipientL1,
		AmountL2:      swap.AmountL2.String(),
		RecipientL2:   swap.RecipientL2,
		Timelock:      swap.Timelock,
		L1BlockID:     swap.L1BlockID,
		L2TxHash:      swap.L2TxHash,
		RefundPending: swap.RefundPending,
		RefundTxHash:  swap.RefundTxHash,
		LastError:     swap.LastError,
		Sources:       []StatusSource{source},
		UpdatedAt:     swap.UpdatedAt,
	}
}

// GetSwapStatus merges the stored swap with the live escrow state and L1 finality.
// Chain state wins over the stored record; chain lookups are bounded by the call
// timeout and a failed lookup leaves the stored value in place.
func (c *Coordinator) GetSwapStatus(ctx context.Context, swapID common.Hash) (*Status, error) {
	swap, err := c.swaps.GetByID(ctx, swapID)
	source := SourceRegistry
	if err != nil {
		if errors.Is(err, entity.ErrSwapNotFound) || c.cache == nil {
			return nil, err
		}
		cached, cacheErr := c.cache.GetSwap(ctx, swapID)
		if cacheErr != nil || cached == nil {
			return nil, err
		}
		c.logger.WithError(err).WithField("swap_id", swapID).Warn("swap store is unavailable, serving cached status")
		swap, source = cached, SourceCache
	}
	view := newStatus(swap, source)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Resilience.CallTimeout)
	defer cancel()
	logger := c.logger.WithField("swap_id", swapID)

	escrow, err := c.l2.GetSwapStatus(ctx, swapID)
	if err != nil {
		logger.WithError(err).Debug("can't read swap escrow")
	} else {
		view.Escrow = escrow.String()
		view.Sources = append(view.Sources, SourceEscrow)
		switch escrow {
		case contract.EscrowLocked, contract.EscrowClaimed:
			view.L2Status = entity.LegConfirmed
		case contract.EscrowRefunded:
			view.L2Status = legStatusFor(swap.Status)
			view.RefundPending = false
		}
	}

	if swap.L1BlockID != nil && swap.L1Status == entity.LegPending {
		meta, err := c.l1.BlockMetadata(ctx, *swap.L1BlockID)
		if err != nil {
			logger.WithError(err).Debug("can't read l1 block metadata")
		} else {
			view.Sources = append(view.Sources, SourceL1)
			view.L1Confirmations = &meta.Confirmations
			if meta.IsFinal(c.cfg.L1.FinalityDepth) {
				view.L1Status = entity.LegConfirmed
			}
		}
	}

	if view.Status == entity.SwapPending {
		switch {
		case view.L1Status == entity.LegConfirmed && view.L2Status == entity.LegConfirmed:
			view.Status = entity.SwapCompleted
		case c.now().After(swap.Timelock) && (swap.L1BlockID == nil || view.L1Status == entity.LegUnknown):
			// A delivered L1 leg waits for finality and is never expired.
			view.Status = entity.SwapExpired
		}
	}
	if source == SourceRegistry {
		c.cacheSwap(ctx, swap)
	}
	return view, nil
}
