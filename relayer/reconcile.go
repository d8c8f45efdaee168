package relayer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/events"
)

const reconcileBatchSize = 100

// ReconcileSubmissions drives Pending messages whose submission is unfinished: it polls
// receipts of sent L2 transactions, resubmits messages that were never accepted,
// re-executes interrupted inbound messages and redelivers L2->L1 messages that no path
// accepted. Messages updated within the last call timeout are left to their caller.
func (r *Relayer) ReconcileSubmissions(ctx context.Context) error {
	grace := r.now().Add(-r.cfg.Resilience.CallTimeout)
	for _, dir := range []entity.Direction{entity.DirectionL1ToL2, entity.DirectionL2ToL1} {
		msgs, err := r.registry.FindByStatus(ctx, entity.StatusPending, dir, reconcileBatchSize)
		if err != nil {
			return fmt.Errorf("can't find pending messages: %w", err)
		}
		for _, msg := range msgs {
			if msg.LastUpdated.After(grace) {
				continue
			}
			if err = r.reconcileClaimed(ctx, msg.MessageID); err != nil {
				r.logger.WithError(err).WithField("message_id", msg.MessageID).Warn("message reconciliation failed")
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	return nil
}

// reconcileClaimed reconciles messageID unless another operation holds it. The message
// is reloaded after the claim since its owner may have moved it on.
func (r *Relayer) reconcileClaimed(ctx context.Context, messageID common.Hash) error {
	msg, release, err := r.lock(ctx, messageID)
	if errors.Is(err, ErrMessageBusy) {
		return nil
	}
	if err != nil {
		return err
	}
	defer release()
	if msg.Status != entity.StatusPending {
		return nil
	}
	return r.reconcile(ctx, msg)
}

func (r *Relayer) reconcile(ctx context.Context, msg *entity.BridgeMessage) error {
	switch {
	case msg.Origin == entity.OriginInbound:
		if _, err := r.gate.Admit(msg); err != nil {
			r.fail(ctx, msg, err)
			return err
		}
		return r.execute(ctx, msg)
	case msg.Direction == entity.DirectionL1ToL2 && msg.TxHash == nil:
		return r.submitToL2(ctx, msg)
	case msg.Direction == entity.DirectionL1ToL2:
		return r.reconcileReceipt(ctx, msg)
	case msg.BridgeStatus == entity.DeliverySucceeded || msg.BridgeStatus == entity.DeliveryUnknown ||
		msg.SecondaryStatus == entity.DeliverySucceeded:
		return nil
	default:
		return r.deliverToL1(ctx, msg)
	}
}

func (r *Relayer) reconcileReceipt(ctx context.Context, msg *entity.BridgeMessage) error {
	receipt, err := r.l2.Receipt(ctx, *msg.TxHash)
	if err != nil {
		return fmt.Errorf("can't get receipt: %w", err)
	}
	if receipt == nil {
		return nil
	}
	logger := r.logger.WithFields(logrus.Fields{
		"message_id":   msg.MessageID,
		"tx_hash":      msg.TxHash,
		"block_number": receipt.BlockNumber,
	})
	if receipt.Status != types.ReceiptStatusSuccessful {
		logger.Warn("l2 transaction reverted")
		r.fail(ctx, msg, fmt.Errorf("%w: transaction reverted", entity.ErrExecutionFailed))
		return nil
	}
	event, err := r.l2.ParseProcessed(receipt)
	if err != nil {
		return fmt.Errorf("can't parse receipt: %w", err)
	}
	if event != nil && !event.Success {
		logger.Warn("l2 reported failed execution")
		r.fail(ctx, msg, fmt.Errorf("%w: l2 execution failed", entity.ErrExecutionFailed))
		return nil
	}
	err = r.registry.Transition(ctx, msg, entity.StatusProcessed, func(m *entity.BridgeMessage) {
		if event != nil {
			id := event.MessageID
			m.RemoteMessageID = &id
			m.ProofVerified = m.ProofVerified || event.ZKVerified
		}
		m.LastError = ""
	})
	if err != nil {
		return err
	}
	logger.Info("message processed on l2")
	r.cacheMessage(ctx, msg)
	r.publishMessage(events.MessageProcessed, msg, "")
	return nil
}
