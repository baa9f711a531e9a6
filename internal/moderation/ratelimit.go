package moderation

import (
	"context"
	"sync"
	"time"
)

const (
	rateWindow  = time.Minute
	resetBuffer = 500 * time.Millisecond
)

// Limiter is a process-wide throttle for outbound provider calls. One
// counter over a fixed wall-clock window; callers block until a slot is
// free. Best effort and single-process only, not a distributed limiter.
type Limiter struct {
	mu       sync.Mutex
	ceiling  int
	minDelay time.Duration

	count       int
	windowStart time.Time

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewLimiter(ceiling int, minDelay time.Duration) *Limiter {
	l := &Limiter{
		ceiling:  ceiling,
		minDelay: minDelay,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	l.windowStart = l.now()
	return l
}

// Acquire blocks until one provider call may be issued. The mutex is held
// across any waiting so concurrent screeners cannot jointly exceed the
// ceiling; context cancellation aborts the wait.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.windowStart) > rateWindow {
		l.count = 0
		l.windowStart = now
	}

	if l.count >= l.ceiling {
		wait := l.windowStart.Add(rateWindow + resetBuffer).Sub(now)
		if wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
		l.count = 0
		l.windowStart = l.now()
	}

	l.count++

	// small fixed spacing between calls to avoid bursts
	if l.minDelay > 0 {
		if err := l.sleep(ctx, l.minDelay); err != nil {
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
