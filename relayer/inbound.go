package relayer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/events"
	"github.com/poanetwork/layer-bridge/registry"
)

// InboundMessage is a message received from L1 together with its oracle attestation.
type InboundMessage struct {
	Sender        string
	TargetAddress string
	MessageType   entity.MessageType
	Payload       []byte
	ZKProof       []byte
	PublicInputs  []byte
	L1Timestamp   uint64
	// Sequence is assigned by the originating side and is part of the message id.
	Sequence   uint64
	GasLimit   uint64
	Signatures [][]byte
	// Source names the path the message arrived by, for logging.
	Source string
}

func (in *InboundMessage) message() *entity.BridgeMessage {
	msg := &entity.BridgeMessage{
		Sender:        in.Sender,
		TargetAddress: in.TargetAddress,
		Direction:     entity.DirectionL1ToL2,
		MessageType:   in.MessageType,
		Origin:        entity.OriginInbound,
		Payload:       in.Payload,
		ZKProof:       in.ZKProof,
		PublicInputs:  in.PublicInputs,
		GasLimit:      in.GasLimit,
		Timestamp:     in.L1Timestamp,
		Sequence:      in.Sequence,
	}
	registry.Identify(msg)
	return msg
}

// MessageID is the id oracles attest for in.
func (in *InboundMessage) MessageID() common.Hash {
	return in.message().MessageID
}

// ProcessMessageFromL1 admits and executes an inbound L1->L2 message. Duplicates are
// rejected before any other work; the oracle quorum is verified before the commitment
// is consumed, so a forged attestation can't burn a legitimate message.
func (r *Relayer) ProcessMessageFromL1(ctx context.Context, in *InboundMessage) (*entity.BridgeMessage, error) {
	if !r.cfg.L2.IsActive() {
		return nil, fmt.Errorf("l2 is %s: %w", r.cfg.L2.Status, entity.ErrChainInactive)
	}
	if len(in.Payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", entity.ErrValidation)
	}
	msg := in.message()
	logger := r.logger.WithFields(logrus.Fields{
		"commitment_hash": msg.CommitmentHash,
		"source":          in.Source,
	})

	used, err := r.registry.HasCommitment(ctx, msg.CommitmentHash)
	if err != nil {
		return nil, err
	}
	if used {
		InboundTotal.WithLabelValues("duplicate").Inc()
		logger.Debug("inbound message was already processed")
		return nil, fmt.Errorf("commitment %s: %w", msg.CommitmentHash, entity.ErrReplayDetected)
	}
	if in.Sequence == 0 {
		return nil, fmt.Errorf("%w: inbound message without sequence", entity.ErrValidation)
	}
	release, err := r.claim(msg.MessageID)
	if err != nil {
		return nil, err
	}
	defer release()
	if _, err = r.oracle.VerifyMessage(msg.MessageID, in.Signatures); err != nil {
		InboundTotal.WithLabelValues("unattested").Inc()
		return nil, err
	}
	if err = r.register(ctx, msg); err != nil {
		return nil, err
	}
	logger = logger.WithField("message_id", msg.MessageID)

	if _, err = r.gate.Admit(msg); err != nil {
		InboundTotal.WithLabelValues("proof_rejected").Inc()
		r.fail(ctx, msg, err)
		return msg, err
	}
	if err = r.execute(ctx, msg); err != nil {
		InboundTotal.WithLabelValues("failed").Inc()
		logger.WithError(err).Warn("inbound message execution failed")
		return msg, err
	}
	InboundTotal.WithLabelValues("processed").Inc()
	return msg, nil
}

// execute runs the handler of msg and moves it to Processed or Failed.
func (r *Relayer) execute(ctx context.Context, msg *entity.BridgeMessage) error {
	if err := r.handlers.Execute(ctx, msg); err != nil {
		if !errors.Is(err, entity.ErrUnknownMessageType) {
			err = fmt.Errorf("%w: %v", entity.ErrExecutionFailed, err)
		}
		r.fail(ctx, msg, err)
		return err
	}
	verified := msg.ProofVerified
	if err := r.registry.Transition(ctx, msg, entity.StatusProcessed, func(m *entity.BridgeMessage) {
		m.ProofVerified = verified
		m.LastError = ""
	}); err != nil {
		return err
	}
	r.cacheMessage(ctx, msg)
	r.publishMessage(events.MessageProcessed, msg, "")
	return nil
}

func (r *Relayer) fail(ctx context.Context, msg *entity.BridgeMessage, cause error) {
	verified := msg.ProofVerified
	err := r.registry.Transition(ctx, msg, entity.StatusFailed, func(m *entity.BridgeMessage) {
		m.ProofVerified = verified
		m.LastError = cause.Error()
	})
	if err != nil {
		r.logger.WithError(err).WithField("message_id", msg.MessageID).Error("can't mark message as failed")
		return
	}
	r.cacheMessage(ctx, msg)
	r.publishMessage(events.MessageProcessed, msg, "")
}

// RetryWithNewProof replaces the proof of a Failed message and re-attempts it. Only the
// sender or an admin may retry, at most the configured number of times.
func (r *Relayer) RetryWithNewProof(ctx context.Context, caller string, messageID common.Hash, proof, publicInputs []byte) (*entity.BridgeMessage, error) {
	msg, release, err := r.lock(ctx, messageID)
	if err != nil {
		return nil, err
	}
	defer release()
	if !sameAccount(caller, msg.Sender) && !r.IsAdmin(caller) {
		return nil, fmt.Errorf("%s can't retry message %s: %w", caller, msg.MessageID, entity.ErrUnauthorized)
	}
	if msg.Status != entity.StatusFailed {
		return nil, fmt.Errorf("message %s is %s: %w", msg.MessageID, msg.Status, entity.ErrInvalidTransition)
	}
	if len(proof) == 0 {
		return nil, fmt.Errorf("%w: empty proof", entity.ErrValidation)
	}
	if err = r.registry.Transition(ctx, msg, entity.StatusPending, func(m *entity.BridgeMessage) {
		m.ZKProof = proof
		m.PublicInputs = publicInputs
		m.ProofVerified = false
		m.TxHash = nil
	}); err != nil {
		return nil, err
	}
	RetriesTotal.WithLabelValues(msg.Direction.String()).Inc()
	r.logger.WithFields(logrus.Fields{
		"message_id":  msg.MessageID,
		"retry_count": msg.RetryCount,
		"caller":      caller,
	}).Info("retrying message with new proof")

	if _, err = r.gate.Admit(msg); err != nil {
		r.fail(ctx, msg, err)
		return msg, err
	}
	switch {
	case msg.Origin == entity.OriginInbound:
		err = r.execute(ctx, msg)
	case msg.Direction == entity.DirectionL1ToL2:
		err = r.submitToL2(ctx, msg)
	default:
		err = r.deliverToL1(ctx, msg)
	}
	return msg, err
}
