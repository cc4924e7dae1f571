package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }
func (c *fakeClock) sleep(d time.Duration)   { c.advance(d) }

func TestAcquireConsumesTokens(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := NewLimiter(60, 100, WithClock(clock.now), WithSleep(clock.sleep))

	for i := 0; i < 60; i++ {
		require.True(t, l.Acquire(), "token %d", i)
		l.Release()
	}
	assert.False(t, l.Acquire(), "bucket should be empty")
}

func TestTokensRefillProRata(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := NewLimiter(60, 100, WithClock(clock.now), WithSleep(clock.sleep))

	for i := 0; i < 60; i++ {
		require.True(t, l.Acquire())
		l.Release()
	}
	require.False(t, l.Acquire())

	// 60 rpm refills one token per second.
	clock.advance(time.Second)
	assert.True(t, l.Acquire())
	l.Release()
	assert.False(t, l.Acquire())
}

func TestConcurrencySlots(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := NewLimiter(1000, 2, WithClock(clock.now), WithSleep(clock.sleep))

	require.True(t, l.Acquire())
	require.True(t, l.Acquire())
	assert.False(t, l.Acquire(), "both slots occupied")

	l.Release()
	assert.True(t, l.Acquire(), "released slot should be reusable")
}

func TestWaitForAvailabilityTimesOut(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := NewLimiter(1000, 1, WithClock(clock.now), WithSleep(clock.sleep))

	require.True(t, l.Acquire())
	// Slot is never released; the wait must give up after the timeout.
	assert.False(t, l.WaitForAvailability(5*time.Second))
}

func TestWaitForAvailabilitySucceedsAfterRefill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := NewLimiter(60, 100, WithClock(clock.now), WithSleep(clock.sleep))

	for i := 0; i < 60; i++ {
		require.True(t, l.Acquire())
		l.Release()
	}
	require.False(t, l.Acquire())

	// One token refills after a second of (fake) sleeping.
	assert.True(t, l.WaitForAvailability(10*time.Second))
}
