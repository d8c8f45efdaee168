package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/logging"
)

type SubmissionReconciler interface {
	ReconcileSubmissions(ctx context.Context) error
}

type SwapReconciler interface {
	Reconcile(ctx context.Context) error
}

type PendingCounter interface {
	CountPendingOlderThan(ctx context.Context, age time.Duration) (map[entity.Direction]uint, error)
}

type Manager struct {
	logger logging.Logger
	jobs   []*Job
}

func NewManager(cfg *config.Config, submissions SubmissionReconciler, swaps SwapReconciler, pending PendingCounter, logger logging.Logger) (*Manager, error) {
	jobs := []*Job{
		{
			Name:     "submission_reconciler",
			Schedule: cfg.Jobs.SubmissionReconciler,
			Timeout:  time.Minute,
			Func:     submissions.ReconcileSubmissions,
		},
		{
			Name:     "swap_reconciler",
			Schedule: cfg.Jobs.SwapReconciler,
			Timeout:  time.Minute * 2,
			Func:     swaps.Reconcile,
		},
		{
			Name:     "stuck_messages",
			Schedule: cfg.Jobs.StuckMessages,
			Timeout:  time.Second * 20,
			Func:     StuckMessagesFunc(pending, cfg.Messages.MessageTimeout, logger),
		},
	}
	for _, job := range jobs {
		if _, err := cron.ParseStandard(job.Schedule); err != nil {
			return nil, fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule, job.Name, err)
		}
		job.logger = logger.WithField("job", job.Name)
	}
	return &Manager{
		logger: logger,
		jobs:   jobs,
	}, nil
}

func (m *Manager) Jobs() []*Job {
	return m.jobs
}

// Start schedules every job and blocks until ctx is done. Runs of the same job never overlap.
func (m *Manager) Start(ctx context.Context) {
	cl := cronLogger{m.logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	for _, job := range m.jobs {
		job := job
		if _, err := c.AddFunc(job.Schedule, func() { job.Run(ctx) }); err != nil {
			m.logger.WithError(err).WithField("job", job.Name).Error("can't schedule job")
		}
	}
	m.logger.WithField("count", len(m.jobs)).Info("starting watcher jobs")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	m.logger.Info("watcher jobs stopped")
}

// StuckMessagesFunc reports messages that are still pending after timeout.
func StuckMessagesFunc(pending PendingCounter, timeout time.Duration, logger logging.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		counts, err := pending.CountPendingOlderThan(ctx, timeout)
		if err != nil {
			return fmt.Errorf("can't count stuck messages: %w", err)
		}
		StuckMessages.Reset()
		total := uint(0)
		for direction, count := range counts {
			StuckMessages.WithLabelValues(direction.String()).Set(float64(count))
			total += count
		}
		if total > 0 {
			logger.WithFields(logrus.Fields{
				"count":   total,
				"timeout": timeout,
			}).Warn("found stuck messages")
		}
		return nil
	}
}

type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	res := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		res[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return res
}
