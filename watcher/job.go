package watcher

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/poanetwork/layer-bridge/logging"
)

type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Func     func(ctx context.Context) error

	logger logging.Logger
}

func (j *Job) Run(ctx context.Context) {
	timeoutCtx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()

	start := time.Now()
	err := j.Func(timeoutCtx)
	duration := time.Since(start)
	JobDuration.WithLabelValues(j.Name).Observe(duration.Seconds())
	if err != nil {
		JobRunsTotal.WithLabelValues(j.Name, "error").Inc()
		j.logger.WithError(err).WithField("duration", duration).Error("failed to process job")
		return
	}
	JobRunsTotal.WithLabelValues(j.Name, "ok").Inc()
	j.logger.WithFields(logrus.Fields{
		"duration": duration,
	}).Debug("job iteration finished")
}
