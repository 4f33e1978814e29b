package usage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// schedule runs a job at the times produced by next until stopped.
type schedule struct {
	name   string
	next   func(now time.Time) time.Time
	job    func(ctx context.Context)
	clock  quartz.Clock
	logger zerolog.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

func newSchedule(name string, next func(time.Time) time.Time, job func(context.Context), clock quartz.Clock, logger zerolog.Logger) *schedule {
	return &schedule{
		name:     name,
		next:     next,
		job:      job,
		clock:    clock,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *schedule) Start(ctx context.Context) {
	if s.started.CompareAndSwap(false, true) {
		go s.run(ctx)
	}
}

// Stop stops the scheduler and waits for a running job to finish
func (s *schedule) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	if s.started.Load() {
		<-s.done
	}
}

// Next returns the first fire time strictly after now.
func (s *schedule) Next(now time.Time) time.Time {
	return s.next(now)
}

func (s *schedule) run(ctx context.Context) {
	defer close(s.done)

	for {
		now := s.clock.Now()
		next := s.next(now)
		wait := next.Sub(now)

		s.logger.Info().
			Time("next_run", next).
			Dur("wait_duration", wait).
			Msg("Scheduled next run")

		timer := s.clock.NewTimer(wait, s.name)
		select {
		case <-timer.C:
			s.job(ctx)
		case <-s.stopChan:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// ResetScheduler fires once a day at a fixed local time of day
type ResetScheduler struct {
	*schedule
	resetTime time.Time // only hour and minute are used
}

// NewResetScheduler creates a new reset scheduler. resetTime is HH:MM local
// time; onReset runs on the scheduler goroutine.
func NewResetScheduler(resetTime string, clock quartz.Clock, onReset func(context.Context), logger zerolog.Logger) (*ResetScheduler, error) {
	parsedTime, err := time.Parse("15:04", resetTime)
	if err != nil {
		return nil, fmt.Errorf("invalid reset time %q: %w", resetTime, err)
	}

	rs := &ResetScheduler{resetTime: parsedTime}
	rs.schedule = newSchedule(
		"reset",
		rs.calculateNextReset,
		onReset,
		clock,
		logger.With().Str("component", "reset-scheduler").Str("reset_time", resetTime).Logger(),
	)
	return rs, nil
}

// calculateNextReset returns the next reset strictly after now
func (rs *ResetScheduler) calculateNextReset(now time.Time) time.Time {
	todayReset := time.Date(
		now.Year(), now.Month(), now.Day(),
		rs.resetTime.Hour(), rs.resetTime.Minute(), 0, 0,
		now.Location(),
	)

	// If we've already reached today's reset time, schedule for tomorrow
	if !now.Before(todayReset) {
		return time.Date(
			now.Year(), now.Month(), now.Day()+1,
			rs.resetTime.Hour(), rs.resetTime.Minute(), 0, 0,
			now.Location(),
		)
	}

	return todayReset
}

// RetentionScheduler runs ledger pruning on a cron schedule
type RetentionScheduler struct {
	*schedule
}

// NewRetentionScheduler parses a standard five-field cron expression.
func NewRetentionScheduler(spec string, clock quartz.Clock, job func(context.Context), logger zerolog.Logger) (*RetentionScheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", spec, err)
	}

	return &RetentionScheduler{
		schedule: newSchedule(
			"retention",
			sched.Next,
			job,
			clock,
			logger.With().Str("component", "retention-scheduler").Str("schedule", spec).Logger(),
		),
	}, nil
}
