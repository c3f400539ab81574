// Package ratelimit spaces out calls to remote services.
package ratelimit

import (
	"fmt"
	"time"

	garyerrors "github.com/lepinkainen/gary/internal/errors"
)

const (
	// MinMicros and MaxMicros bound the interval and pause settings.
	MinMicros = 1
	MaxMicros = 1_999_999_999

	// Gaps at least this long satisfy any configurable interval, so they are
	// accepted without microsecond arithmetic.
	longGap = 2000 * time.Second
)

// Throttle enforces a minimum gap between the end of one remote call and the
// start of the next. It is not safe for concurrent use, and two Throttles
// guarding the same service do not coordinate with each other: exactly one
// Throttle must exist per sequence of calls.
type Throttle struct {
	interval time.Duration
	pause    time.Duration
	now      func() time.Time
	sleep    func(time.Duration)
	last     time.Time
}

// ThrottleOption configures a Throttle.
type ThrottleOption func(*Throttle)

// WithClock replaces the clock. The default is time.Now, whose readings carry
// the monotonic clock.
func WithClock(now func() time.Time) ThrottleOption {
	return func(t *Throttle) {
		if now != nil {
			t.now = now
		}
	}
}

// WithSleep replaces the function used to wait between clock checks.
func WithSleep(sleep func(time.Duration)) ThrottleOption {
	return func(t *Throttle) {
		if sleep != nil {
			t.sleep = sleep
		}
	}
}

// NewThrottle creates a Throttle requiring intervalMicros between calls and
// polling every pauseMicros. Both must be within MinMicros..MaxMicros.
func NewThrottle(intervalMicros, pauseMicros int64, opts ...ThrottleOption) (*Throttle, error) {
	if err := checkMicros("interval", intervalMicros); err != nil {
		return nil, err
	}
	if err := checkMicros("pause", pauseMicros); err != nil {
		return nil, err
	}

	t := &Throttle{
		interval: time.Duration(intervalMicros) * time.Microsecond,
		pause:    time.Duration(pauseMicros) * time.Microsecond,
		now:      time.Now,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.last = t.now()
	return t, nil
}

func checkMicros(name string, v int64) error {
	if v < MinMicros || v > MaxMicros {
		return garyerrors.NewConfigError(name, v, fmt.Sprintf("must be between %d and %d microseconds", MinMicros, MaxMicros))
	}
	return nil
}

// Wait blocks until at least the configured interval has elapsed since the
// last Mark (or construction). It returns a ClockRegressionError if the clock
// reads earlier than the stored timestamp.
func (t *Throttle) Wait() error {
	for {
		now := t.now()
		if now.Before(t.last) {
			return garyerrors.NewClockRegressionError(t.last, now)
		}
		gap := now.Sub(t.last)
		if gap >= longGap || gap >= t.interval {
			return nil
		}
		t.sleep(t.pause)
	}
}

// Mark records the end of a remote call. The next Wait measures from here.
func (t *Throttle) Mark() {
	t.last = t.now()
}

// Interval returns the configured minimum gap.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// Pause returns the polling quantum used while waiting.
func (t *Throttle) Pause() time.Duration {
	return t.pause
}
