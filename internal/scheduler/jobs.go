package scheduler

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"videosafety-worker/internal/services"
)

// PendingRunner processes one batch of pending reports.
type PendingRunner interface {
	Run(ctx context.Context) (int, error)
}

// PollJob is the cron job that drives the report queue.
type PollJob struct {
	ctx    context.Context
	runner PendingRunner
	logger logrus.FieldLogger
}

// NewPollJob binds runner to ctx; cancelling ctx interrupts an in-flight poll.
func NewPollJob(ctx context.Context, runner PendingRunner, logger logrus.FieldLogger) *PollJob {
	return &PollJob{ctx: ctx, runner: runner, logger: logger}
}

// Run implements cron.Job.
func (j *PollJob) Run() {
	if j.ctx.Err() != nil {
		return
	}
	n, err := j.runner.Run(j.ctx)
	switch {
	case errors.Is(err, services.ErrAlreadyRunning):
		j.logger.Info("[Scheduler] previous poll still running, skipping")
	case err != nil:
		j.logger.WithError(err).WithField("processed", n).Error("[Scheduler] poll failed")
	case n > 0:
		j.logger.WithField("processed", n).Info("[Scheduler] poll finished")
	default:
		j.logger.Debug("[Scheduler] poll found nothing to do")
	}
}
