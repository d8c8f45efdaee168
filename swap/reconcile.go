package swap

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/poanetwork/layer-bridge/contract"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/l1client"
	"github.com/poanetwork/layer-bridge/logging"
)

const reconcileBatchSize = 100

// Reconcile advances open swaps: it confirms mined locks, sends missing L1 legs,
// probes L1 finality, expires swaps past their timelock and retries unfinished
// refunds. Swaps held by another call are skipped.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	swaps, err := c.swaps.FindOpen(ctx, reconcileBatchSize)
	if err != nil {
		return fmt.Errorf("can't find open swaps: %w", err)
	}
	OpenSwaps.Set(float64(len(swaps)))
	for _, swap := range swaps {
		if !c.acquire(swap.SwapID) {
			continue
		}
		err = c.reconcile(ctx, swap)
		c.release(swap.SwapID)
		if err != nil {
			c.logger.WithError(err).WithField("swap_id", swap.SwapID).Warn("swap reconciliation failed")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (c *Coordinator) reconcile(ctx context.Context, swap *entity.SwapRecord) error {
	if swap.RefundPending {
		return c.reconcileRefund(ctx, swap)
	}
	if swap.Status != entity.SwapPending {
		return nil
	}
	expired := swap.Expired(c.now())

	if swap.L2Status == entity.LegPending {
		if swap.L2TxHash == nil {
			if expired {
				c.finish(ctx, swap, entity.SwapExpired)
				return nil
			}
			if err := c.lockL2(ctx, swap); err != nil {
				return err
			}
		}
		receipt, err := c.l2.Receipt(ctx, *swap.L2TxHash)
		if err != nil {
			return fmt.Errorf("can't get lock receipt: %w", err)
		}
		if receipt == nil {
			if expired {
				c.compensate(ctx, swap, entity.SwapExpired)
			}
			return nil
		}
		if err = c.applyLock(ctx, swap, receipt); err != nil {
			return err
		}
	}
	return c.reconcileL1(ctx, swap, expired)
}

func (c *Coordinator) reconcileL1(ctx context.Context, swap *entity.SwapRecord, expired bool) error {
	switch {
	case swap.L2Status != entity.LegConfirmed:
		return nil
	case swap.L1Status == entity.LegUnknown:
		if expired {
			c.logger.WithField("swap_id", swap.SwapID).Warn("l1 leg outcome is unknown after timelock, refunding l2 lock")
			c.compensate(ctx, swap, entity.SwapExpired)
		}
		return nil
	case swap.L1BlockID == nil:
		if expired {
			c.compensate(ctx, swap, entity.SwapExpired)
			return nil
		}
		return c.sendL1(ctx, swap)
	}

	meta, err := c.l1.BlockMetadata(ctx, *swap.L1BlockID)
	if err != nil {
		return fmt.Errorf("can't get l1 block metadata: %w", err)
	}
	switch {
	case meta.IsFinal(c.cfg.L1.FinalityDepth):
		swap.L1Status = entity.LegConfirmed
		swap.Status = entity.SwapCompleted
		swap.LastError = ""
		SwapsTotal.WithLabelValues(string(entity.SwapCompleted)).Inc()
		c.logger.WithField("swap_id", swap.SwapID).Info("swap completed")
		return c.save(ctx, swap)
	case meta.State == l1client.BlockConflicting:
		swap.LastError = fmt.Sprintf("l1 block %s is conflicting", meta.BlockID)
		c.logger.WithField("swap_id", swap.SwapID).Error("l1 leg was rejected, refunding l2 lock")
		c.compensate(ctx, swap, entity.SwapCancelled)
	}
	return nil
}

func (c *Coordinator) reconcileRefund(ctx context.Context, swap *entity.SwapRecord) error {
	logger := c.logger.WithField("swap_id", swap.SwapID)
	escrow, err := c.l2.GetSwapStatus(ctx, swap.SwapID)
	if err != nil {
		return fmt.Errorf("can't read swap escrow: %w", err)
	}
	switch escrow {
	case contract.EscrowRefunded:
		swap.RefundPending = false
		swap.L2Status = entity.LegCancelled
		CompensationsTotal.WithLabelValues("refunded").Inc()
		logger.Info("l2 refund confirmed")
		return c.save(ctx, swap)
	case contract.EscrowNone:
		if swap.L2TxHash != nil {
			receipt, err := c.l2.Receipt(ctx, *swap.L2TxHash)
			if err != nil {
				return fmt.Errorf("can't get lock receipt: %w", err)
			}
			if receipt == nil {
				// The lock may still be mined.
				return nil
			}
		}
		swap.RefundPending = false
		swap.L2Status = legStatusFor(swap.Status)
		logger.Info("l2 lock was never placed, nothing to refund")
		return c.save(ctx, swap)
	case contract.EscrowClaimed:
		swap.RefundPending = false
		swap.L2Status = entity.LegConfirmed
		swap.LastError = "l2 lock was claimed before refund"
		logging.Security(logger, "swap_claimed_after_cancel").Warn("l2 lock of a closed swap was claimed")
		return c.save(ctx, swap)
	}

	if swap.RefundTxHash != nil {
		receipt, err := c.l2.Receipt(ctx, *swap.RefundTxHash)
		if err != nil {
			return fmt.Errorf("can't get refund receipt: %w", err)
		}
		if receipt == nil || receipt.Status == types.ReceiptStatusSuccessful {
			return nil
		}
		logger.WithField("tx_hash", swap.RefundTxHash).Warn("l2 refund reverted, resending")
	}
	c.refundL2(ctx, swap)
	return nil
}
