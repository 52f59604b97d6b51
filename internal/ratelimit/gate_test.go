package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when the gate sleeps
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestGate_SpacesCalls(t *testing.T) {
	clock := newFakeClock()
	gate := NewGate(2*time.Second, true, WithClock(clock.Now), WithSleep(clock.Sleep))
	ctx := context.Background()

	require.NoError(t, gate.Wait(ctx))
	assert.Empty(t, clock.sleeps, "First call of the run should not wait")
	gate.Done()

	require.NoError(t, gate.Wait(ctx))
	gate.Done()
	require.NoError(t, gate.Wait(ctx))
	gate.Done()
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, clock.sleeps)
}

func TestGate_PauseFollowsSlowCall(t *testing.T) {
	clock := newFakeClock()
	gate := NewGate(2*time.Second, true, WithClock(clock.Now), WithSleep(clock.Sleep))
	ctx := context.Background()

	require.NoError(t, gate.Wait(ctx))
	clock.Advance(5 * time.Second)
	gate.Done()

	require.NoError(t, gate.Wait(ctx))
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.sleeps, "A call longer than the interval is still followed by a full pause")
}

func TestGate_IdleTimeAfterCallCountsTowardPause(t *testing.T) {
	clock := newFakeClock()
	gate := NewGate(2*time.Second, true, WithClock(clock.Now), WithSleep(clock.Sleep))
	ctx := context.Background()

	require.NoError(t, gate.Wait(ctx))
	gate.Done()
	clock.Advance(1500 * time.Millisecond)
	require.NoError(t, gate.Wait(ctx))
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, clock.sleeps)
	gate.Done()

	clock.Advance(10 * time.Second)
	require.NoError(t, gate.Wait(ctx))
	assert.Len(t, clock.sleeps, 1, "No wait once the interval has passed since the last call")
}

func TestGate_FirstCallWaitsWhenNotSkipped(t *testing.T) {
	clock := newFakeClock()
	gate := NewGate(time.Second, false, WithClock(clock.Now), WithSleep(clock.Sleep))

	require.NoError(t, gate.Wait(context.Background()))
	assert.Equal(t, []time.Duration{time.Second}, clock.sleeps)
}

func TestGate_Disabled(t *testing.T) {
	clock := newFakeClock()
	gate := NewGate(0, true, WithClock(clock.Now), WithSleep(clock.Sleep))

	for i := 0; i < 5; i++ {
		require.NoError(t, gate.Wait(context.Background()))
		gate.Done()
	}
	assert.Empty(t, clock.sleeps)
}

func TestGate_CancelledContext(t *testing.T) {
	clock := newFakeClock()
	gate := NewGate(time.Second, true, WithClock(clock.Now), WithSleep(clock.Sleep))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, gate.Wait(ctx))
	gate.Done()
	cancel()

	err := gate.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
