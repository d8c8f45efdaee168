package relayer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/poanetwork/layer-bridge/breaker"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/events"
	"github.com/poanetwork/layer-bridge/resilience"
	"github.com/poanetwork/layer-bridge/utils"
)

type SendRequest struct {
	Sender        string
	TargetAddress string
	MessageType   entity.MessageType
	Payload       []byte
	GasLimit      uint64
	// Fee is the amount paid by the sender with the message.
	Fee          *big.Int
	ZKProof      []byte
	PublicInputs []byte
	// Timestamp defaults to the current time.
	Timestamp uint64
}

func (r *Relayer) chainsActive() error {
	if !r.cfg.L1.IsActive() {
		return fmt.Errorf("l1 is %s: %w", r.cfg.L1.Status, entity.ErrChainInactive)
	}
	if !r.cfg.L2.IsActive() {
		return fmt.Errorf("l2 is %s: %w", r.cfg.L2.Status, entity.ErrChainInactive)
	}
	return nil
}

func (r *Relayer) validateAddresses(dir entity.Direction, sender, target string) error {
	var senderErr, targetErr error
	if dir == entity.DirectionL1ToL2 {
		senderErr = utils.ValidateL1Address(sender, r.cfg.L1.Bech32HRP)
		targetErr = utils.ValidateL2Address(target)
	} else {
		senderErr = utils.ValidateL2Address(sender)
		targetErr = utils.ValidateL1Address(target, r.cfg.L1.Bech32HRP)
	}
	if senderErr != nil {
		return fmt.Errorf("%w: sender: %v", entity.ErrValidation, senderErr)
	}
	if targetErr != nil {
		return fmt.Errorf("%w: target: %v", entity.ErrValidation, targetErr)
	}
	return nil
}

// prepare validates req and builds the message that will be registered. Nothing is
// persisted when it fails.
func (r *Relayer) prepare(req *SendRequest, dir entity.Direction) (*entity.BridgeMessage, error) {
	if err := r.chainsActive(); err != nil {
		return nil, err
	}
	if err := r.validateAddresses(dir, req.Sender, req.TargetAddress); err != nil {
		return nil, err
	}
	if len(req.Payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", entity.ErrValidation)
	}
	if !req.MessageType.IsKnown() {
		return nil, fmt.Errorf("%w: %q: %v", entity.ErrValidation, req.MessageType, entity.ErrUnknownMessageType)
	}
	if len(req.ZKProof) == 0 && len(req.PublicInputs) > 0 {
		return nil, fmt.Errorf("%w: public inputs without proof", entity.ErrValidation)
	}
	if err := r.fees.Check(req.Fee, len(req.Payload), len(req.ZKProof)); err != nil {
		return nil, err
	}
	ts := req.Timestamp
	if ts == 0 {
		ts = uint64(r.now().Unix())
	}
	msg := &entity.BridgeMessage{
		Sender:        req.Sender,
		TargetAddress: req.TargetAddress,
		Direction:     dir,
		MessageType:   req.MessageType,
		Origin:        entity.OriginAPI,
		Payload:       req.Payload,
		ZKProof:       req.ZKProof,
		PublicInputs:  req.PublicInputs,
		Fee:           entity.NewWei(req.Fee),
		GasLimit:      req.GasLimit,
		Timestamp:     ts,
	}
	if _, err := r.gate.Admit(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *Relayer) register(ctx context.Context, msg *entity.BridgeMessage) error {
	if err := r.registry.Register(ctx, msg); err != nil {
		if errors.Is(err, entity.ErrReplayDetected) {
			r.publish(events.Event{Type: events.ReplayRejected, Direction: msg.Direction, Actor: msg.Sender})
		}
		return err
	}
	r.cacheMessage(ctx, msg)
	r.publishMessage(events.MessageSent, msg, msg.Sender)
	return nil
}

// registerClaimed registers msg and claims it for the caller. The id is only known once
// the registry assigned the sequence.
func (r *Relayer) registerClaimed(ctx context.Context, msg *entity.BridgeMessage) (func(), error) {
	if err := r.register(ctx, msg); err != nil {
		return nil, err
	}
	return r.claim(msg.MessageID)
}

// SendMessageToL2 registers an L1->L2 message and submits it to the L2 bridge contract.
// The returned message is Pending; the submission reconciler completes it once the
// transaction is mined. A non-nil message is returned with an error when the message
// was registered but its submission did not succeed yet.
func (r *Relayer) SendMessageToL2(ctx context.Context, req *SendRequest) (*entity.BridgeMessage, error) {
	msg, err := r.prepare(req, entity.DirectionL1ToL2)
	if err != nil {
		return nil, err
	}
	release, err := r.registerClaimed(ctx, msg)
	if err != nil {
		return nil, err
	}
	defer release()
	if err = r.submitToL2(ctx, msg); err != nil {
		return msg, err
	}
	return msg, nil
}

// submitToL2 sends processMessageFromL1 for msg. The transaction hash is stored before
// broadcast so that an unknown outcome is reconciled by receipt instead of resending.
func (r *Relayer) submitToL2(ctx context.Context, msg *entity.BridgeMessage) error {
	logger := r.logger.WithField("message_id", msg.MessageID)
	sigs, err := r.attest(ctx, msg)
	if err != nil {
		return err
	}
	err = r.breakers.Get(entity.RouteL1ToL2).Execute(ctx, func(ctx context.Context) error {
		_, err := r.l2.ProcessMessageFromL1(ctx, msg, sigs, func(txHash common.Hash) error {
			return r.registry.Save(ctx, msg, func(m *entity.BridgeMessage) {
				m.TxHash = &txHash
				m.LastError = ""
			})
		})
		return err
	})
	if err == nil {
		SubmissionsTotal.WithLabelValues(string(entity.RouteL1ToL2), "sent").Inc()
		logger.WithField("tx_hash", msg.TxHash).Info("submitted message to l2")
		r.cacheMessage(ctx, msg)
		return nil
	}

	switch {
	case errors.Is(err, resilience.ErrTimeout):
		SubmissionsTotal.WithLabelValues(string(entity.RouteL1ToL2), "unknown").Inc()
		logger.WithError(err).Warn("l2 submission outcome is unknown, waiting for receipt")
		r.recordError(ctx, msg, err)
		return err
	case resilience.IsPermanent(err):
		SubmissionsTotal.WithLabelValues(string(entity.RouteL1ToL2), "rejected").Inc()
		logger.WithError(err).Error("l2 rejected message submission")
		if terr := r.registry.Transition(ctx, msg, entity.StatusFailed, func(m *entity.BridgeMessage) {
			m.LastError = err.Error()
		}); terr != nil {
			logger.WithError(terr).Error("can't mark message as failed")
		}
		r.cacheMessage(ctx, msg)
		r.publishMessage(events.MessageProcessed, msg, "")
		return fmt.Errorf("%w: %v", entity.ErrExecutionFailed, err)
	default:
		SubmissionsTotal.WithLabelValues(string(entity.RouteL1ToL2), "failed").Inc()
		logger.WithError(err).Warn("l2 submission failed, will be retried")
		// A signed but never accepted transaction is replaced on the next attempt.
		r.recordError(ctx, msg, err, func(m *entity.BridgeMessage) { m.TxHash = nil })
		return err
	}
}

func (r *Relayer) recordError(ctx context.Context, msg *entity.BridgeMessage, cause error, extra ...func(m *entity.BridgeMessage)) {
	err := r.registry.Save(ctx, msg, func(m *entity.BridgeMessage) {
		m.LastError = cause.Error()
		for _, fn := range extra {
			fn(m)
		}
	})
	if err != nil {
		r.logger.WithError(err).WithField("message_id", msg.MessageID).Error("can't record message error")
	}
	r.cacheMessage(ctx, msg)
}

// SendMessageToL1 registers an L2->L1 message and delivers it through the L1 tagged
// block path and, when configured, the secondary channel. Delivery succeeds if either
// path succeeds; the receiving side discards the duplicate by replay protection.
func (r *Relayer) SendMessageToL1(ctx context.Context, req *SendRequest) (*entity.BridgeMessage, error) {
	msg, err := r.prepare(req, entity.DirectionL2ToL1)
	if err != nil {
		return nil, err
	}
	release, err := r.registerClaimed(ctx, msg)
	if err != nil {
		return nil, err
	}
	defer release()
	if err = r.deliverToL1(ctx, msg); err != nil {
		return msg, err
	}
	return msg, nil
}

func (r *Relayer) deliverToL1(ctx context.Context, msg *entity.BridgeMessage) error {
	logger := r.logger.WithField("message_id", msg.MessageID)
	sigs, err := r.attest(ctx, msg)
	if err != nil {
		return err
	}
	data, err := NewEnvelope(msg, sigs).Encode()
	if err != nil {
		return err
	}

	var (
		blockID                  string
		primary, secondary       = entity.DeliveryFailed, entity.DeliverySkipped
		primaryErr, secondaryErr error
	)
	err = r.breakers.Get(entity.RouteL2ToL1).Execute(ctx, func(ctx context.Context) error {
		var g errgroup.Group
		g.Go(func() error {
			blockID, primaryErr = r.l1.SubmitBlock(ctx, r.cfg.L1.Tag, data)
			switch {
			case primaryErr == nil:
				primary = entity.DeliverySucceeded
			case errors.Is(primaryErr, resilience.ErrTimeout):
				primary = entity.DeliveryUnknown
			}
			return nil
		})
		if r.secondary != nil {
			g.Go(func() error {
				secondary, secondaryErr = r.publishSecondary(ctx, data)
				return nil
			})
		}
		_ = g.Wait()
		if primary == entity.DeliverySucceeded || secondary == entity.DeliverySucceeded {
			return nil
		}
		if primaryErr != nil {
			return primaryErr
		}
		return secondaryErr
	})
	if errors.Is(err, breaker.ErrCircuitOpen) {
		r.recordError(ctx, msg, err)
		return err
	}

	logger = logger.WithFields(logrus.Fields{
		"bridge_status":    primary,
		"secondary_status": secondary,
	})
	if primaryErr != nil {
		logger.WithError(primaryErr).Warn("l1 block submission failed")
	}
	if secondaryErr != nil {
		logger.WithError(secondaryErr).Warn("secondary channel delivery failed")
	}
	saveErr := r.registry.Save(ctx, msg, func(m *entity.BridgeMessage) {
		if blockID != "" {
			m.L1BlockID = &blockID
		}
		m.BridgeStatus = primary
		m.SecondaryStatus = secondary
		m.LastError = ""
		if err != nil {
			m.LastError = err.Error()
		}
	})
	if saveErr != nil {
		logger.WithError(saveErr).Error("can't record delivery status")
	}
	r.cacheMessage(ctx, msg)
	if err != nil {
		SubmissionsTotal.WithLabelValues(string(entity.RouteL2ToL1), "failed").Inc()
		return err
	}
	SubmissionsTotal.WithLabelValues(string(entity.RouteL2ToL1), "sent").Inc()
	logger.WithField("l1_block_id", blockID).Info("delivered message to l1")
	return nil
}

func (r *Relayer) publishSecondary(ctx context.Context, data []byte) (entity.DeliveryStatus, error) {
	topic := r.cfg.Secondary.Topic
	sealed, err := r.sealer.Seal(data, []byte(topic))
	if err != nil {
		return entity.DeliveryFailed, err
	}
	_, err = resilience.WithBackoff(ctx, resilience.NewBackoffConfig(r.cfg.Resilience.Retry), func(ctx context.Context, _ int) (struct{}, error) {
		return resilience.WithTimeout(ctx, r.cfg.Resilience.CallTimeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, r.secondary.Publish(ctx, topic, sealed)
		})
	})
	if err != nil {
		return entity.DeliveryFailed, err
	}
	return entity.DeliverySucceeded, nil
}
