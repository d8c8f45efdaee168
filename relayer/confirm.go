package relayer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/events"
)

// ConfirmL2ToL1Message records the oracle attested L1 outcome of an L2->L1 message.
// A failed outcome refunds the fee to the sender.
func (r *Relayer) ConfirmL2ToL1Message(ctx context.Context, messageID common.Hash, success bool, sigs [][]byte) (*entity.BridgeMessage, error) {
	msg, release, err := r.lock(ctx, messageID)
	if err != nil {
		return nil, err
	}
	defer release()
	if msg.Direction != entity.DirectionL2ToL1 {
		return nil, fmt.Errorf("message %s is %s: %w", msg.MessageID, msg.Direction, entity.ErrValidation)
	}
	if msg.Status != entity.StatusPending {
		return nil, fmt.Errorf("message %s is %s: %w", msg.MessageID, msg.Status, entity.ErrInvalidTransition)
	}
	if _, err = r.oracle.VerifyConfirmation(msg.MessageID, success, sigs); err != nil {
		return nil, err
	}
	logger := r.logger.WithFields(logrus.Fields{
		"message_id": msg.MessageID,
		"success":    success,
	})

	if msg.RemoteMessageID != nil {
		// The contract holds the fee of messages sent on chain and refunds it itself.
		err = r.breakers.Get(entity.RouteL2ToL1).Execute(ctx, func(ctx context.Context) error {
			_, err := r.l2.ConfirmL2ToL1Message(ctx, *msg.RemoteMessageID, success, sigs, nil)
			return err
		})
		if err != nil {
			logger.WithError(err).Error("can't confirm message on l2")
			return msg, err
		}
	} else if !success {
		if err = r.refund(ctx, msg); err != nil {
			return msg, err
		}
	}

	to := entity.StatusProcessed
	if !success {
		to = entity.StatusFailed
	}
	if err = r.registry.Transition(ctx, msg, to, func(m *entity.BridgeMessage) {
		if !success {
			m.LastError = "l1 execution failed"
		}
	}); err != nil {
		return msg, err
	}
	r.cacheMessage(ctx, msg)
	r.publishMessage(events.MessageProcessed, msg, "")
	logger.Info("confirmed l1 outcome")
	return msg, nil
}

// CancelMessage cancels a Pending message whose timeout passed and refunds its fee.
// Only the sender or an admin may cancel.
func (r *Relayer) CancelMessage(ctx context.Context, caller string, messageID common.Hash) (*entity.BridgeMessage, error) {
	msg, release, err := r.lock(ctx, messageID)
	if err != nil {
		return nil, err
	}
	defer release()
	if !sameAccount(caller, msg.Sender) && !r.IsAdmin(caller) {
		logger := r.logger.WithFields(logrus.Fields{"message_id": msg.MessageID, "caller": caller})
		logger.Warn("rejected cancel from non sender")
		return nil, fmt.Errorf("%s can't cancel message %s: %w", caller, msg.MessageID, entity.ErrUnauthorized)
	}
	if msg.Status != entity.StatusPending {
		return nil, fmt.Errorf("message %s is %s: %w", msg.MessageID, msg.Status, entity.ErrInvalidTransition)
	}
	deadline := msg.CreatedAt.Add(r.cfg.Messages.MessageTimeout)
	if !r.now().After(deadline) {
		return nil, fmt.Errorf("message %s can be canceled after %s: %w", msg.MessageID, deadline, entity.ErrMessageNotExpired)
	}

	if msg.RemoteMessageID != nil {
		err = r.breakers.Get(entity.RouteL2ToL1).Execute(ctx, func(ctx context.Context) error {
			_, err := r.l2.CancelMessage(ctx, *msg.RemoteMessageID)
			return err
		})
	} else {
		err = r.refund(ctx, msg)
	}
	if err != nil {
		return msg, err
	}
	if err = r.registry.Transition(ctx, msg, entity.StatusCanceled, nil); err != nil {
		return msg, err
	}
	r.cacheMessage(ctx, msg)
	r.publishMessage(events.MessageCanceled, msg, caller)
	return msg, nil
}

func (r *Relayer) refund(ctx context.Context, msg *entity.BridgeMessage) error {
	if msg.Fee.Sign() == 0 {
		return nil
	}
	route := entity.RouteL2ToL1
	if msg.Direction == entity.DirectionL1ToL2 {
		route = entity.RouteL1ToL2
	}
	var ref string
	err := r.breakers.Get(route).Execute(ctx, func(ctx context.Context) error {
		var err error
		ref, err = r.refunder.Refund(ctx, msg)
		return err
	})
	logger := r.logger.WithFields(logrus.Fields{
		"message_id": msg.MessageID,
		"recipient":  msg.Sender,
		"amount":     msg.Fee.String(),
	})
	if err != nil {
		RefundsTotal.WithLabelValues("failed").Inc()
		logger.WithError(err).Error("can't refund message fee")
		return fmt.Errorf("can't refund fee: %w", err)
	}
	RefundsTotal.WithLabelValues("sent").Inc()
	logger.WithField("ref", ref).Info("refunded message fee")
	return nil
}
