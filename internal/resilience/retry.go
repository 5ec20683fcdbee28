package resilience

import (
	"context"
	"time"
)

// BackoffPolicy describes the retry schedule for model calls: the first
// transient failure sleeps Initial, every further failure multiplies the
// sleep, and once the next sleep would exceed Ceiling the call gives up.
// After FallbackAfter transient failures the caller switches to its backup
// model for the remaining attempts.
type BackoffPolicy struct {
	Initial       time.Duration
	Multiplier    float64
	Ceiling       time.Duration
	FallbackAfter int
}

// DefaultBackoffPolicy sleeps 10s, 20s, 40s, 80s, 160s and then fails,
// switching to the backup model after the third failure.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Initial:       10 * time.Second,
		Multiplier:    2.0,
		Ceiling:       300 * time.Second,
		FallbackAfter: 3,
	}
}

func (p BackoffPolicy) withDefaults() BackoffPolicy {
	def := DefaultBackoffPolicy()
	if p.Initial <= 0 {
		p.Initial = def.Initial
	}
	// A multiplier of 1 or less never reaches the ceiling.
	if p.Multiplier <= 1 {
		p.Multiplier = def.Multiplier
	}
	if p.Ceiling <= 0 {
		p.Ceiling = def.Ceiling
	}
	if p.FallbackAfter < 0 {
		p.FallbackAfter = def.FallbackAfter
	}
	return p
}

// Backoff returns the sleep before retry number failures (1-based) and
// whether that retry is still within the ceiling.
func (p BackoffPolicy) Backoff(failures int) (time.Duration, bool) {
	p = p.withDefaults()
	if failures < 1 {
		return 0, true
	}
	delay := p.Initial
	for i := 1; i < failures; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > p.Ceiling {
			return 0, false
		}
	}
	if delay > p.Ceiling {
		return 0, false
	}
	return delay, true
}

// MaxRetries is the number of sleeps the policy allows before giving up.
func (p BackoffPolicy) MaxRetries() int {
	n := 0
	for {
		if _, ok := p.Backoff(n + 1); !ok {
			return n
		}
		n++
	}
}

// ShouldFallback reports whether the call should have switched to the backup
// model after the given number of transient failures.
func (p BackoffPolicy) ShouldFallback(failures int) bool {
	p = p.withDefaults()
	return p.FallbackAfter > 0 && failures >= p.FallbackAfter
}

// Sleeper blocks for a backoff duration. The engine takes it as a dependency
// so tests can count sleeps without waiting.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer and returns early with the context
// error on cancellation.
type TimerSleeper struct{}

// Sleep implements Sleeper.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
