// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TokenPurger clears password reset tokens that have expired.
type TokenPurger interface {
	PurgeExpiredResetTokens(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron    *cron.Cron
	log     logrus.FieldLogger
	timeout time.Duration
}

func NewScheduler(log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		log:     log,
		timeout: time.Minute,
	}
}

// AddResetPurge schedules the expired reset token sweep.
func (s *Scheduler) AddResetPurge(schedule string, purger TokenPurger) error {
	_, err := s.cron.AddFunc(schedule, func() { s.purge(purger) })
	if err != nil {
		return fmt.Errorf("schedule reset token purge %q: %w", schedule, err)
	}
	s.log.WithField("schedule", schedule).Info("reset token purge scheduled")
	return nil
}

func (s *Scheduler) purge(purger TokenPurger) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := purger.PurgeExpiredResetTokens(ctx)
	if err != nil {
		s.log.WithError(err).Error("reset token purge failed")
		return
	}
	if n > 0 {
		s.log.WithField("cleared", n).Info("expired reset tokens cleared")
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stopped before running jobs finished")
	}
}
