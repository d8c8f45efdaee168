package relayer

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/utils"
)

const (
	l2EventsCursor      = "l2_message_sent"
	l1TagCursorPrefix   = "l1_tag:"
	maxBlockRangeSize   = 1000
	taggedBlocksBatch   = 100
	watcherRetryTimeout = 10 * time.Second
)

func (r *Relayer) loadCursor(ctx context.Context, name string, start uint64) uint64 {
	for {
		cursor, err := r.cursors.GetByName(ctx, name)
		if err == nil {
			return cursor.Position + 1
		}
		if errors.Is(err, entity.ErrCursorNotFound) {
			r.logger.WithFields(logrus.Fields{
				"cursor": name,
				"start":  start,
			}).Warn("cursor is not present, starting from scratch")
			return start
		}
		r.logger.WithError(err).WithField("cursor", name).Error("can't read cursor")
		if utils.ContextSleep(ctx, watcherRetryTimeout) == nil {
			return start
		}
	}
}

func (r *Relayer) saveCursor(ctx context.Context, name string, position uint64) {
	if err := r.cursors.Ensure(ctx, &entity.Cursor{Name: name, Position: position}); err != nil {
		r.logger.WithError(err).WithField("cursor", name).Error("can't save cursor")
	}
}

// StartL2EventWatcher ingests MessageSent events of the L2 bridge contract that reached
// the finality depth and delivers them to L1.
func (r *Relayer) StartL2EventWatcher(ctx context.Context) {
	logger := r.logger.WithField("watcher", "l2_events")
	logger.Info("starting l2 events watcher")
	start := r.loadCursor(ctx, l2EventsCursor, r.cfg.L2.StartBlock)
	for {
		head, err := r.l2.BlockNumber(ctx)
		if err != nil {
			logger.WithError(err).Error("can't fetch latest block number")
		} else if head >= r.cfg.L2.FinalityDepth {
			head -= r.cfg.L2.FinalityDepth
			L2HeadBlock.Set(float64(head))
			for _, rng := range SplitBlockRange(start, head, maxBlockRangeSize) {
				if err = r.ingestL2Range(ctx, logger, rng.From, rng.To); err != nil {
					logger.WithError(err).WithFields(logrus.Fields{
						"from_block": rng.From,
						"to_block":   rng.To,
					}).Error("failed to ingest l2 events, retrying")
					break
				}
				r.saveCursor(ctx, l2EventsCursor, rng.To)
				start = rng.To + 1
			}
		}

		if utils.ContextSleep(ctx, r.cfg.L2.PollInterval) == nil {
			return
		}
	}
}

func (r *Relayer) ingestL2Range(ctx context.Context, logger logging.Logger, from, to uint64) error {
	sent, err := r.l2.MessageSentEvents(ctx, from, to)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"count":      len(sent),
		"from_block": from,
		"to_block":   to,
	}).Debug("fetched MessageSent events")
	for _, e := range sent {
		if e.Direction != entity.DirectionL2ToL1 {
			continue
		}
		remoteID := e.MessageID
		msg := &entity.BridgeMessage{
			Sender:          e.Sender.Hex(),
			TargetAddress:   e.TargetAddress,
			Direction:       entity.DirectionL2ToL1,
			MessageType:     e.MessageType,
			Origin:          entity.OriginL2Event,
			Payload:         e.Payload,
			Timestamp:       e.Timestamp,
			RemoteMessageID: &remoteID,
		}
		if err = r.ingestL2Message(ctx, logger, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Relayer) ingestL2Message(ctx context.Context, logger logging.Logger, msg *entity.BridgeMessage) error {
	release, err := r.registerClaimed(ctx, msg)
	if errors.Is(err, entity.ErrReplayDetected) {
		return nil
	}
	if err != nil {
		return err
	}
	defer release()
	if err = r.deliverToL1(ctx, msg); err != nil {
		logger.WithError(err).WithField("message_id", msg.MessageID).Warn("delivery to l1 failed, will be retried")
	}
	return nil
}

// StartL1TagWatcher feeds final L1 blocks carrying the bridge tag into the pool.
func (r *Relayer) StartL1TagWatcher(ctx context.Context, pool *Pool) {
	tag := r.cfg.L1.Tag
	name := l1TagCursorPrefix + tag
	logger := r.logger.WithFields(logrus.Fields{"watcher": "l1_tags", "tag": tag})
	logger.Info("starting l1 tagged blocks watcher")
	from := r.loadCursor(ctx, name, 0)
	for {
		blocks, err := r.l1.BlocksByTag(ctx, tag, from, taggedBlocksBatch)
		if err != nil {
			logger.WithError(err).Error("can't fetch tagged blocks")
		}
		for _, block := range blocks {
			meta, err := r.l1.BlockMetadata(ctx, block.BlockID)
			if err != nil {
				logger.WithError(err).WithField("block_id", block.BlockID).Error("can't fetch block metadata")
				break
			}
			if !meta.IsFinal(r.cfg.L1.FinalityDepth) {
				break
			}
			if env, err := DecodeEnvelope(block.Data); err != nil {
				logger.WithError(err).WithField("block_id", block.BlockID).Warn("skipping malformed tagged block")
			} else if env.Direction == entity.DirectionL1ToL2 {
				if err = pool.Enqueue(ctx, &Job{Msg: env.Inbound("l1:" + block.BlockID)}); err != nil {
					return
				}
			}
			r.saveCursor(ctx, name, block.Index)
			from = block.Index + 1
		}

		if utils.ContextSleep(ctx, r.cfg.L1.PollInterval) == nil {
			return
		}
	}
}

// StartSecondaryConsumer feeds messages received over the secondary channel into the
// pool. Ciphertexts that fail authentication are dropped.
func (r *Relayer) StartSecondaryConsumer(ctx context.Context, pool *Pool) error {
	topic := r.cfg.Secondary.Topic
	deliveries, err := r.secondary.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	logger := r.logger.WithFields(logrus.Fields{"watcher": "secondary", "topic": topic})
	logger.Info("starting secondary channel consumer")
	for d := range deliveries {
		data, err := r.sealer.Open(d.Data, []byte(topic))
		if err != nil {
			logging.Security(logger, "unauthenticated_message").WithError(err).Warn("dropped secondary channel message")
			d.Ack(true)
			continue
		}
		env, err := DecodeEnvelope(data)
		if err != nil || env.Direction != entity.DirectionL1ToL2 {
			d.Ack(true)
			continue
		}
		ack := d.Ack
		job := &Job{
			Msg: env.Inbound("secondary"),
			Done: func(_ error, final bool) {
				ack(final)
			},
		}
		if err = pool.Enqueue(ctx, job); err != nil {
			return nil
		}
	}
	return nil
}
