// Package jobs runs the background loops: flip dispatch, deadline sweeps
// and periodic housekeeping.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/alert"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

const flipBatchSize = 100

// Scheduler manages background jobs
type Scheduler struct {
	cron    *cron.Cron
	store   store.Store
	alerter *alert.Alerter
	log     *zap.Logger
}

// NewScheduler creates a new job scheduler
func NewScheduler(s store.Store, alerter *alert.Alerter, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		store:   s,
		alerter: alerter,
		log:     log,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	// Sweep deadlines and dispatch pending flips every 10 seconds. The
	// schedules are literals; AddFunc failing on one is a bug.
	if _, err := s.cron.AddFunc("*/10 * * * * *", s.tick); err != nil {
		s.log.Fatal("invalid tick schedule", zap.Error(err))
	}

	// Drop stale token buckets daily at 3:14 AM.
	if _, err := s.cron.AddFunc("0 14 3 * * *", s.cleanupTokenBuckets); err != nil {
		s.log.Fatal("invalid cleanup schedule", zap.Error(err))
	}

	s.cron.Start()
	s.log.Info("job scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("job scheduler stopped")
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	s.sweepDeadlines(ctx)
	s.dispatchFlips(ctx)
}

// sweepDeadlines flips checks whose alert_after deadline has passed without
// a ping. The flip carries the deadline as its timestamp: that is when the
// check actually went down.
func (s *Scheduler) sweepDeadlines(ctx context.Context) {
	due, err := s.store.ChecksDue(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error("deadline sweep query failed", zap.Error(err))
		return
	}

	for _, check := range due {
		flip := &models.Flip{
			OwnerID:   check.ID,
			Created:   *check.AlertAfter,
			OldStatus: check.Status,
			NewStatus: models.StatusDown,
		}
		if err := s.store.CreateFlip(ctx, flip); err != nil {
			s.log.Error("create flip failed", zap.Uint("check", check.ID), zap.Error(err))
			continue
		}
		err := s.store.UpdateCheckFields(ctx, check.ID, map[string]any{
			"status":      models.StatusDown,
			"alert_after": nil,
		})
		if err != nil {
			s.log.Error("mark check down failed", zap.Uint("check", check.ID), zap.Error(err))
		}
	}
}

// dispatchFlips claims unprocessed flips and sends their alerts. Claiming
// first keeps two scheduler instances from double-sending.
func (s *Scheduler) dispatchFlips(ctx context.Context) {
	flips, err := s.store.UnprocessedFlips(ctx, flipBatchSize)
	if err != nil {
		s.log.Error("flip query failed", zap.Error(err))
		return
	}

	for _, flip := range flips {
		claimed, err := s.store.ClaimFlip(ctx, flip.ID, time.Now().UTC())
		if err != nil {
			s.log.Error("claim flip failed", zap.Uint("flip", flip.ID), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}

		outcomes, err := s.alerter.Dispatch(ctx, flip)
		if errors.Is(err, alert.ErrBadTransition) {
			// Programming-contract violation; keep it loud.
			s.log.Error("invariant violation in flip dispatch",
				zap.Uint("flip", flip.ID),
				zap.String("old_status", flip.OldStatus),
				zap.String("new_status", flip.NewStatus),
				zap.Error(err))
			continue
		}
		if err != nil {
			s.log.Error("flip dispatch failed", zap.Uint("flip", flip.ID), zap.Error(err))
			continue
		}

		for _, o := range outcomes {
			fields := []zap.Field{
				zap.Uint("flip", flip.ID),
				zap.String("channel", o.Channel.Code),
				zap.String("kind", o.Channel.Kind),
				zap.Duration("elapsed", o.Elapsed),
			}
			if o.Error != "" {
				fields = append(fields, zap.String("error", o.Error), zap.Bool("disabled", o.Channel.Disabled))
				s.log.Warn("alert delivery failed", fields...)
			} else {
				s.log.Info("alert delivered", fields...)
			}
		}
	}
}

func (s *Scheduler) cleanupTokenBuckets() {
	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	n, err := s.store.DeleteBucketsBefore(context.Background(), cutoff)
	if err != nil {
		s.log.Error("token bucket cleanup failed", zap.Error(err))
		return
	}
	s.log.Info("cleaned up stale token buckets", zap.Int64("deleted", n))
}
