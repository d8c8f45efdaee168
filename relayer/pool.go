package relayer

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/logging"
)

// Job is an inbound message waiting for a worker. Done, if set, is called with the
// processing result and whether the message may be dropped.
type Job struct {
	Msg  *InboundMessage
	Done func(err error, final bool)
}

// Pool processes inbound messages with a fixed number of workers over a bounded queue.
type Pool struct {
	relayer *Relayer
	queue   chan *Job
	workers int
	logger  logging.Logger
}

func NewPool(relayer *Relayer, workers, queueSize int, logger logging.Logger) *Pool {
	return &Pool{
		relayer: relayer,
		queue:   make(chan *Job, queueSize),
		workers: workers,
		logger:  logger.WithField("service", "pool"),
	}
}

// Enqueue blocks while the queue is full.
func (p *Pool) Enqueue(ctx context.Context, job *Job) error {
	select {
	case p.queue <- job:
		QueueLength.Set(float64(len(p.queue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the workers and blocks until ctx is done.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i
		g.Go(func() error {
			logger := p.logger.WithField("worker", worker)
			for {
				select {
				case <-ctx.Done():
					return nil
				case job := <-p.queue:
					QueueLength.Set(float64(len(p.queue)))
					p.process(ctx, logger, job)
				}
			}
		})
	}
	return g.Wait()
}

func (p *Pool) process(ctx context.Context, logger logging.Logger, job *Job) {
	msg, err := p.relayer.ProcessMessageFromL1(ctx, job.Msg)
	final := err == nil || isFinal(err)
	switch {
	case err == nil:
		logger.WithField("message_id", msg.MessageID).Debug("inbound message processed")
	case errors.Is(err, entity.ErrReplayDetected):
		logger.WithField("source", job.Msg.Source).Debug("skipped duplicate inbound message")
	case final:
		logger.WithError(err).WithField("source", job.Msg.Source).Warn("inbound message rejected")
	default:
		logger.WithError(err).WithField("source", job.Msg.Source).Error("inbound message processing failed")
	}
	if job.Done != nil {
		job.Done(err, final)
	}
}

// isFinal reports whether processing the same message again can't change the outcome.
// A busy message is owned by another worker that completes it.
func isFinal(err error) bool {
	for _, target := range []error{
		entity.ErrReplayDetected,
		entity.ErrQuorumNotReached,
		entity.ErrValidation,
		entity.ErrProofRejected,
		entity.ErrExecutionFailed,
		entity.ErrUnknownMessageType,
		ErrMessageBusy,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
