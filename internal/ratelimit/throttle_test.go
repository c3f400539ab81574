package ratelimit

import (
	"context"
	"testing"
	"time"

	garyerrors "github.com/lepinkainen/gary/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when sleep is called or when moved by the test.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func newTestThrottle(t *testing.T, clock *fakeClock, interval, pause int64) *Throttle {
	t.Helper()
	th, err := NewThrottle(interval, pause, WithClock(clock.Now), WithSleep(clock.Sleep))
	require.NoError(t, err)
	return th
}

func TestNewThrottleRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name     string
		interval int64
		pause    int64
	}{
		{"zero interval", 0, 1},
		{"negative pause", 1, -5},
		{"interval too large", MaxMicros + 1, 1},
		{"pause too large", 1, MaxMicros + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewThrottle(tt.interval, tt.pause)
			require.Error(t, err)
			assert.True(t, garyerrors.IsConfigError(err))
		})
	}

	_, err := NewThrottle(MinMicros, MaxMicros)
	assert.NoError(t, err)
}

func TestThrottleWaitsFromConstruction(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	th := newTestThrottle(t, clock, 500_000, 50_000)

	require.NoError(t, th.Wait())
	assert.GreaterOrEqual(t, clock.Now().Sub(start), 500*time.Millisecond)
	for _, d := range clock.sleeps {
		assert.Equal(t, 50*time.Millisecond, d)
	}
}

func TestThrottleMeasuresFromEndOfPreviousCall(t *testing.T) {
	clock := newFakeClock()
	th := newTestThrottle(t, clock, 500_000, 50_000)

	require.NoError(t, th.Wait())
	// simulate a slow remote call
	clock.now = clock.now.Add(2 * time.Second)
	th.Mark()
	callEnd := clock.Now()

	require.NoError(t, th.Wait())
	assert.GreaterOrEqual(t, clock.Now().Sub(callEnd), 500*time.Millisecond)
	assert.Less(t, clock.Now().Sub(callEnd), 550*time.Millisecond)
}

func TestThrottleNoSleepWhenIntervalElapsed(t *testing.T) {
	clock := newFakeClock()
	th := newTestThrottle(t, clock, 1_000, 1_000)

	clock.now = clock.now.Add(time.Second)
	require.NoError(t, th.Wait())
	assert.Empty(t, clock.sleeps)
}

func TestThrottleLongGapShortCircuits(t *testing.T) {
	clock := newFakeClock()
	th := newTestThrottle(t, clock, MaxMicros, 1)

	clock.now = clock.now.Add(100 * 24 * time.Hour)
	require.NoError(t, th.Wait())
	assert.Empty(t, clock.sleeps)
}

func TestThrottleLongGapAcceptedBeforeInterval(t *testing.T) {
	// configurable intervals always fit under the long-gap cutoff
	assert.Less(t, time.Duration(MaxMicros)*time.Microsecond, longGap)

	clock := newFakeClock()
	th := &Throttle{
		interval: 3 * longGap,
		pause:    time.Second,
		now:      clock.Now,
		sleep:    clock.Sleep,
		last:     clock.Now(),
	}

	clock.now = clock.now.Add(longGap)
	require.NoError(t, th.Wait())
	assert.Empty(t, clock.sleeps)
	assert.Equal(t, 3*longGap, th.Interval())
	assert.Equal(t, time.Second, th.Pause())
}

func TestThrottleClockRegressionIsFatal(t *testing.T) {
	clock := newFakeClock()
	th := newTestThrottle(t, clock, 1_000, 1_000)

	clock.now = clock.now.Add(-time.Second)
	err := th.Wait()
	require.Error(t, err)
	assert.True(t, garyerrors.IsClockRegressionError(err))
}

func TestLimiterWait(t *testing.T) {
	l := New("covers", 0)
	assert.Equal(t, "covers", l.Name())
	require.NoError(t, l.Wait(context.Background()))

	var nilLimiter *Limiter
	assert.NoError(t, nilLimiter.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := New("slow", 0.001)
	require.NoError(t, slow.Wait(context.Background()))
	assert.Error(t, slow.Wait(ctx))
}
