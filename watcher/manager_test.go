package watcher_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/watcher"
)

type countingReconciler struct {
	calls atomic.Int32
	err   error
}

func (r *countingReconciler) ReconcileSubmissions(context.Context) error {
	r.calls.Add(1)
	return r.err
}

func (r *countingReconciler) Reconcile(context.Context) error {
	r.calls.Add(1)
	return r.err
}

type pendingCounter map[entity.Direction]uint

func (p pendingCounter) CountPendingOlderThan(context.Context, time.Duration) (map[entity.Direction]uint, error) {
	return p, nil
}

func newConfig() *config.Config {
	return &config.Config{
		Messages: config.MessagesConfig{MessageTimeout: time.Hour},
		Jobs: config.JobsConfig{
			SubmissionReconciler: "@every 10ms",
			SwapReconciler:       "@every 1m",
			StuckMessages:        "*/5 * * * *",
		},
	}
}

func TestNewManagerRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	cfg := newConfig()
	cfg.Jobs.SwapReconciler = "every minute"

	_, err := watcher.NewManager(cfg, &countingReconciler{}, &countingReconciler{}, pendingCounter{}, logging.Discard())
	require.Error(t, err)
}

func TestJobRunReportsErrors(t *testing.T) {
	t.Parallel()
	submissions := &countingReconciler{err: errors.New("db is down")}
	m, err := watcher.NewManager(newConfig(), submissions, &countingReconciler{}, pendingCounter{}, logging.Discard())
	require.NoError(t, err)

	job := m.Jobs()[0]
	require.Equal(t, "submission_reconciler", job.Name)
	before := testutil.ToFloat64(watcher.JobRunsTotal.WithLabelValues(job.Name, "error"))
	job.Run(context.Background())
	require.Equal(t, int32(1), submissions.calls.Load())
	require.Equal(t, before+1, testutil.ToFloat64(watcher.JobRunsTotal.WithLabelValues(job.Name, "error")))
}

func TestStuckMessages(t *testing.T) {
	t.Parallel()
	fn := watcher.StuckMessagesFunc(pendingCounter{
		entity.DirectionL1ToL2: 3,
		entity.DirectionL2ToL1: 1,
	}, time.Hour, logging.Discard())

	require.NoError(t, fn(context.Background()))
	require.Equal(t, 3.0, testutil.ToFloat64(watcher.StuckMessages.WithLabelValues(entity.DirectionL1ToL2.String())))
	require.Equal(t, 1.0, testutil.ToFloat64(watcher.StuckMessages.WithLabelValues(entity.DirectionL2ToL1.String())))
}

func TestManagerStart(t *testing.T) {
	t.Parallel()
	submissions := &countingReconciler{}
	m, err := watcher.NewManager(newConfig(), submissions, &countingReconciler{}, pendingCounter{}, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		return submissions.calls.Load() > 0
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
