package resilience

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
)

// ScheduleConfig holds configuration for a RetrySchedule.
type ScheduleConfig struct {
	// Base is the first retry delay after a failure.
	// Default: 5 seconds
	Base time.Duration

	// Cap is the largest retry delay.
	// Default: 10 minutes
	Cap time.Duration

	// RefreshInterval is the delay after a complete success.
	// Default: 15 minutes
	RefreshInterval time.Duration

	// Clock is the time source (default: real clock).
	Clock clockwork.Clock
}

// DefaultScheduleConfig returns the default retry schedule.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		Base:            5 * time.Second,
		Cap:             10 * time.Minute,
		RefreshInterval: 15 * time.Minute,
	}
}

// RetrySchedule decides when the next fetch attempt is due.
//
// Failures and partial successes advance an exponential backoff that doubles
// from Base up to Cap. A complete success resets it. The first attempt is due
// immediately.
type RetrySchedule struct {
	bo      *backoff.ExponentialBackOff
	clock   clockwork.Clock
	refresh time.Duration

	next      time.Time
	lastDelay time.Duration
	failures  int
}

// NewRetrySchedule creates a schedule whose first attempt is due now.
func NewRetrySchedule(cfg ScheduleConfig) *RetrySchedule {
	defaults := DefaultScheduleConfig()
	if cfg.Base <= 0 {
		cfg.Base = defaults.Base
	}
	if cfg.Cap <= 0 {
		cfg.Cap = defaults.Cap
	}
	if cfg.Cap < cfg.Base {
		cfg.Cap = cfg.Base
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaults.RefreshInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.Base
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = cfg.Cap
	bo.MaxElapsedTime = 0 // retry forever
	bo.Clock = cfg.Clock
	bo.Reset()

	return &RetrySchedule{
		bo:      bo,
		clock:   cfg.Clock,
		refresh: cfg.RefreshInterval,
		next:    cfg.Clock.Now(),
	}
}

// Due reports whether the next attempt may start.
func (s *RetrySchedule) Due() bool {
	return !s.clock.Now().Before(s.next)
}

// NextAttempt returns when the next attempt becomes due.
func (s *RetrySchedule) NextAttempt() time.Time {
	return s.next
}

// LastDelay returns the delay chosen by the most recent Record call.
func (s *RetrySchedule) LastDelay() time.Duration {
	return s.lastDelay
}

// Failures returns the number of failed or partial attempts since the last
// complete success.
func (s *RetrySchedule) Failures() int {
	return s.failures
}

// RecordSuccess resets the backoff after a complete success and schedules the
// next regular refresh.
func (s *RetrySchedule) RecordSuccess() time.Duration {
	s.bo.Reset()
	s.failures = 0
	return s.schedule(s.refresh)
}

// RecordFailure advances the backoff and schedules a retry.
func (s *RetrySchedule) RecordFailure() time.Duration {
	s.failures++
	delay := s.bo.NextBackOff()
	if delay == backoff.Stop {
		delay = s.bo.MaxInterval
	}
	return s.schedule(delay)
}

// RecordPartial handles a success that did not cover every subregion. The
// data is used but the schedule treats it as a failure.
func (s *RetrySchedule) RecordPartial() time.Duration {
	return s.RecordFailure()
}

func (s *RetrySchedule) schedule(delay time.Duration) time.Duration {
	s.lastDelay = delay
	s.next = s.clock.Now().Add(delay)
	return delay
}
