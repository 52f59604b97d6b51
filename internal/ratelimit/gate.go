package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Gate enforces a pause of at least the configured interval after every external
// call, measured from the moment the previous call completed. Callers pair Wait
// before a call with Done after it. The clock and sleep are injectable so tests
// never wait on the wall clock. A Gate serves one sequential caller.
type Gate struct {
	limiter  *rate.Limiter
	interval time.Duration
	now      func() time.Time
	sleep    SleepFunc
}

// Option customizes a Gate
type Option func(*Gate)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithSleep replaces the blocking sleep
func WithSleep(sleep SleepFunc) Option {
	return func(g *Gate) { g.sleep = sleep }
}

// NewGate creates a gate with the given post-call interval.
// When skipFirst is true the very first call of the run goes through immediately.
// A non-positive interval disables the gate.
func NewGate(interval time.Duration, skipFirst bool, opts ...Option) *Gate {
	g := &Gate{
		interval: interval,
		now:      time.Now,
		sleep:    Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}

	if interval <= 0 {
		g.limiter = rate.NewLimiter(rate.Inf, 1)
		return g
	}

	g.limiter = rate.NewLimiter(rate.Every(interval), 1)
	if !skipFirst {
		// consume the initial token so the first call also waits a full interval
		g.limiter.ReserveN(g.now(), 1)
	}
	return g
}

// Wait blocks until a full interval has passed since the last Done.
// It does not take a token; Done does.
func (g *Gate) Wait(ctx context.Context) error {
	if g.interval <= 0 {
		return ctx.Err()
	}

	tokens := g.limiter.TokensAt(g.now())
	if tokens >= 1 {
		return ctx.Err()
	}

	delay := time.Duration((1 - tokens) * float64(g.interval))
	if delay <= 0 {
		return ctx.Err()
	}

	log.Debug().Dur("delay", delay).Msg("Rate gate waiting before next call")

	return g.sleep(ctx, delay)
}

// Done marks the completion of a call; the next Wait counts the interval from here
func (g *Gate) Done() {
	if g.interval <= 0 {
		return
	}
	g.limiter.ReserveN(g.now(), 1)
}

// Sleep is the wall-clock SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
