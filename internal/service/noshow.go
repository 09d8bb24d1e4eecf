package service

import (
	"context"
	"log/slog"
	"time"

	"toda/internal/redis"
)

// NoShowScheduler fires due no-show timers. It runs on the server so the
// timer fires even when no driver app is connected.
type NoShowScheduler struct {
	noShows             redis.NoShowQueueInterface
	tripService         *TripService
	notificationService *NotificationService
	tick                time.Duration
	batch               int64
	autoReport          bool
	retryDelay          time.Duration
}

// NoShowSchedulerConfig holds scheduler tuning.
type NoShowSchedulerConfig struct {
	Tick       time.Duration
	Batch      int64
	AutoReport bool
}

// NewNoShowScheduler creates a new NoShowScheduler.
func NewNoShowScheduler(
	noShows redis.NoShowQueueInterface,
	tripService *TripService,
	notificationService *NotificationService,
	cfg NoShowSchedulerConfig,
) *NoShowScheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	return &NoShowScheduler{
		noShows:             noShows,
		tripService:         tripService,
		notificationService: notificationService,
		tick:                cfg.Tick,
		batch:               cfg.Batch,
		autoReport:          cfg.AutoReport,
		retryDelay:          10 * cfg.Tick,
	}
}

// Run processes due timers every tick until ctx is cancelled.
func (s *NoShowScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	slog.Info("no-show scheduler started", "tick", s.tick, "auto_report", s.autoReport)
	for {
		select {
		case <-ctx.Done():
			slog.Info("no-show scheduler stopped")
			return
		case now := <-ticker.C:
			if _, err := s.RunOnce(ctx, now); err != nil && ctx.Err() == nil {
				slog.Error("no-show tick failed", "error", err)
			}
		}
	}
}

// RunOnce fires every timer due at now and returns how many fired.
func (s *NoShowScheduler) RunOnce(ctx context.Context, now time.Time) (int, error) {
	due, err := s.noShows.ClaimDue(ctx, now, s.batch)
	if err != nil {
		return 0, err
	}

	fired := 0
	for _, bookingID := range due {
		if s.fire(ctx, bookingID, now) {
			fired++
		}
	}
	return fired, nil
}

func (s *NoShowScheduler) fire(ctx context.Context, bookingID string, now time.Time) bool {
	if !s.autoReport {
		booking, err := s.tripService.NoShowAvailable(ctx, bookingID)
		if err != nil {
			return false
		}
		if s.notificationService != nil {
			_ = s.notificationService.NotifyNoShowAvailable(ctx, booking)
		}
		return true
	}

	closed, err := s.tripService.AutoNoShow(ctx, bookingID)
	if err != nil {
		slog.WarnContext(ctx, "auto no-show failed, retrying", "booking_id", bookingID, "error", err)
		if err := s.noShows.Schedule(ctx, bookingID, now.Add(s.retryDelay)); err != nil {
			slog.ErrorContext(ctx, "reschedule no-show failed", "booking_id", bookingID, "error", err)
		}
		return false
	}
	return closed
}
