package registry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/logging"
)

// CanTransition reports whether from -> to is an edge of the message state machine.
// Failed -> Pending is the proof retry path and is additionally bounded by the retry count.
func CanTransition(from, to entity.MessageStatus) bool {
	switch from {
	case entity.StatusPending:
		return to == entity.StatusProcessed || to == entity.StatusFailed || to == entity.StatusCanceled
	case entity.StatusFailed:
		return to == entity.StatusPending
	}
	return false
}

type Registry struct {
	repo     entity.MessagesRepo
	seq      atomic.Uint64
	maxRetry uint
	now      func() time.Time
	logger   logging.Logger
}

func New(ctx context.Context, repo entity.MessagesRepo, maxRetry uint, logger logging.Logger) (*Registry, error) {
	seq, err := repo.MaxSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't load message sequence: %w", err)
	}
	r := &Registry{
		repo:     repo,
		maxRetry: maxRetry,
		now:      time.Now,
		logger:   logger.WithField("service", "registry"),
	}
	r.seq.Store(seq)
	return r, nil
}

func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

func (r *Registry) MaxRetry() uint {
	return r.maxRetry
}

// Register derives the commitment and message id of msg and stores it as Pending.
// Inbound messages keep the sequence assigned by their origin so that the id can be
// recomputed by every relayer. A reused commitment fails with entity.ErrReplayDetected.
func (r *Registry) Register(ctx context.Context, msg *entity.BridgeMessage) error {
	Identify(msg)
	if msg.Origin != entity.OriginInbound || msg.Sequence == 0 {
		msg.Sequence = r.seq.Add(1)
		msg.MessageID = MessageID(msg.Sender, msg.TargetAddress, msg.MessageType, msg.Payload, msg.CommitmentHash, msg.Timestamp, msg.Sequence)
	}
	if msg.Origin == "" {
		msg.Origin = entity.OriginAPI
	}
	msg.Status = entity.StatusPending
	now := r.now().UTC()
	msg.CreatedAt = now
	msg.LastUpdated = now

	if err := r.repo.Create(ctx, msg); err != nil {
		if errors.Is(err, entity.ErrReplayDetected) {
			ReplayRejected.WithLabelValues(msg.Direction.String()).Inc()
			logging.Security(r.logger, "replay_detected").WithFields(logrus.Fields{
				"commitment_hash": msg.CommitmentHash,
				"sender":          msg.Sender,
				"direction":       msg.Direction,
			}).Warn("rejected message with used commitment")
		}
		return err
	}
	MessagesTotal.WithLabelValues(msg.Direction.String(), msg.Status.String()).Inc()
	r.logger.WithFields(logrus.Fields{
		"message_id": msg.MessageID,
		"direction":  msg.Direction,
		"type":       msg.MessageType,
	}).Info("registered message")
	return nil
}

// Identify fills the commitment hash of msg and, when msg carries a sequence, its message id.
func Identify(msg *entity.BridgeMessage) {
	msg.CommitmentHash = CommitmentHash(msg.Sender, msg.TargetAddress, msg.MessageType, msg.Payload, msg.ZKProof, msg.Timestamp)
	if msg.Sequence != 0 {
		msg.MessageID = MessageID(msg.Sender, msg.TargetAddress, msg.MessageType, msg.Payload, msg.CommitmentHash, msg.Timestamp, msg.Sequence)
	}
}

// HasCommitment reports whether the commitment was consumed already.
func (r *Registry) HasCommitment(ctx context.Context, commitment common.Hash) (bool, error) {
	return r.repo.HasCommitment(ctx, commitment)
}

func (r *Registry) Get(ctx context.Context, messageID common.Hash) (*entity.BridgeMessage, error) {
	return r.repo.GetByID(ctx, messageID)
}

func (r *Registry) FindBySender(ctx context.Context, sender string) ([]*entity.BridgeMessage, error) {
	return r.repo.FindBySender(ctx, sender)
}

func (r *Registry) FindByStatus(ctx context.Context, status entity.MessageStatus, direction entity.Direction, limit uint64) ([]*entity.BridgeMessage, error) {
	return r.repo.FindByStatus(ctx, status, direction, limit)
}

func (r *Registry) CountPendingOlderThan(ctx context.Context, age time.Duration) (map[entity.Direction]uint, error) {
	return r.repo.CountPendingOlderThan(ctx, r.now().Add(-age))
}

// Transition moves msg to status to, applying mutate to the stored copy. It is a
// compare-and-set against the current status of msg; on success msg reflects the stored record.
func (r *Registry) Transition(ctx context.Context, msg *entity.BridgeMessage, to entity.MessageStatus, mutate func(m *entity.BridgeMessage)) error {
	from := msg.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("message %s %s -> %s: %w", msg.MessageID, from, to, entity.ErrInvalidTransition)
	}
	next := msg.Clone()
	if from == entity.StatusFailed && to == entity.StatusPending {
		if next.RetryCount >= r.maxRetry {
			return fmt.Errorf("message %s retried %d times: %w", msg.MessageID, next.RetryCount, entity.ErrRetryLimitReached)
		}
		next.RetryCount++
	}
	if mutate != nil {
		mutate(next)
	}
	next.Status = to
	next.LastUpdated = r.now().UTC()
	if err := r.repo.Update(ctx, next, from); err != nil {
		return err
	}
	*msg = *next
	MessagesTotal.WithLabelValues(msg.Direction.String(), to.String()).Inc()
	r.logger.WithFields(logrus.Fields{
		"message_id": msg.MessageID,
		"from":       from,
		"to":         to,
	}).Info("message status changed")
	return nil
}

// Save persists non-status fields of msg, guarded by its current status.
func (r *Registry) Save(ctx context.Context, msg *entity.BridgeMessage, mutate func(m *entity.BridgeMessage)) error {
	next := msg.Clone()
	mutate(next)
	next.Status = msg.Status
	next.LastUpdated = r.now().UTC()
	if err := r.repo.Update(ctx, next, msg.Status); err != nil {
		return err
	}
	*msg = *next
	return nil
}
