// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"time"

	"bounty-listing-system/logger"
	"bounty-listing-system/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

const DefaultSchedulerInterval = time.Minute

// PublishScheduler publishes bounties whose scheduled time has come and moves
// published bounties past their deadline into review.
type PublishScheduler struct {
	DB       *gorm.DB
	Log      logger.Logger
	Interval time.Duration
	Now      func() time.Time
}

func NewPublishScheduler(db *gorm.DB, log logger.Logger, interval time.Duration) *PublishScheduler {
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	return &PublishScheduler{
		DB:       db,
		Log:      log.With(logger.String("component", "scheduler")),
		Interval: interval,
		Now:      time.Now,
	}
}

// PublishDue publishes every OPEN, unpublished bounty with publish_at <= now.
func (s *PublishScheduler) PublishDue(ctx context.Context, now time.Time) (int, error) {
	result := s.DB.WithContext(ctx).
		Model(&models.Bounty{}).
		Where("status = ? AND is_published = ? AND publish_at IS NOT NULL AND publish_at <= ?",
			models.BountyStatusOpen, false, now).
		Updates(map[string]any{
			"is_published": true,
			"published_at": now,
			"publish_at":   nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("publish due bounties: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// MoveExpiredToReview moves published OPEN bounties whose deadline has passed to REVIEW.
func (s *PublishScheduler) MoveExpiredToReview(ctx context.Context, now time.Time) (int, error) {
	result := s.DB.WithContext(ctx).
		Model(&models.Bounty{}).
		Where("status = ? AND is_published = ? AND deadline IS NOT NULL AND deadline <= ?",
			models.BountyStatusOpen, true, now).
		Update("status", models.BountyStatusReview)
	if result.Error != nil {
		return 0, fmt.Errorf("move expired bounties: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// Tick runs one pass of both jobs.
func (s *PublishScheduler) Tick(ctx context.Context) {
	now := s.Now()

	published, err := s.PublishDue(ctx, now)
	if err != nil {
		s.Log.Error("[Scheduler] publish pass failed", logger.Error(err))
	} else if published > 0 {
		s.Log.Info("[Scheduler] auto-published bounties", logger.Int("count", published))
	}

	moved, err := s.MoveExpiredToReview(ctx, now)
	if err != nil {
		s.Log.Error("[Scheduler] review pass failed", logger.Error(err))
	} else if moved > 0 {
		s.Log.Info("[Scheduler] moved bounties to review", logger.Int("count", moved))
	}
}

// Run schedules Tick every Interval and blocks until ctx is done.
func (s *PublishScheduler) Run(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.Interval),
		gocron.NewTask(func() { s.Tick(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("register publish job: %w", err)
	}

	sched.Start()
	s.Log.Info("[Scheduler] started", logger.Duration("interval", s.Interval))

	<-ctx.Done()
	if err := sched.Shutdown(); err != nil {
		return fmt.Errorf("scheduler shutdown: %w", err)
	}
	s.Log.Info("[Scheduler] stopped")
	return nil
}
