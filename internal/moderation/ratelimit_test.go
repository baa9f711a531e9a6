package moderation

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives the limiter without real sleeping. Sleeps advance the
// clock and are recorded.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func newTestLimiter(ceiling int, minDelay time.Duration) (*Limiter, *fakeClock) {
	clock := newFakeClock()
	l := NewLimiter(ceiling, minDelay)
	l.now = clock.Now
	l.sleep = clock.Sleep
	l.windowStart = clock.Now()
	return l, clock
}

func TestLimiterSpacesCalls(t *testing.T) {
	l, clock := newTestLimiter(10, 100*time.Millisecond)

	for i := 0; i < 3; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}

	if len(clock.sleeps) != 3 {
		t.Fatalf("expected 3 inter-call delays, got %d", len(clock.sleeps))
	}
	for _, d := range clock.sleeps {
		if d != 100*time.Millisecond {
			t.Errorf("inter-call delay = %v, want 100ms", d)
		}
	}
}

func TestLimiterBlocksAtCeiling(t *testing.T) {
	l, clock := newTestLimiter(2, 0)

	for i := 0; i < 2; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("no waiting expected under the ceiling, got %v", clock.sleeps)
	}

	// third call exhausts the window and must wait for the reset
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(clock.sleeps) != 1 {
		t.Fatalf("expected one exhaustion wait, got %d", len(clock.sleeps))
	}
	if clock.sleeps[0] < rateWindow {
		t.Errorf("exhaustion wait %v should cover the remaining window", clock.sleeps[0])
	}
	if l.count != 1 {
		t.Errorf("count after reset = %d, want 1", l.count)
	}
}

func TestLimiterResetsAfterWindow(t *testing.T) {
	l, clock := newTestLimiter(2, 0)

	for i := 0; i < 2; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}

	// a new wall-clock window clears the counter without waiting
	clock.now = clock.now.Add(rateWindow + time.Second)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("fresh window should not wait, got %v", clock.sleeps)
	}
	if l.count != 1 {
		t.Errorf("count in fresh window = %d, want 1", l.count)
	}
}

func TestLimiterHonorsCancellation(t *testing.T) {
	l, _ := newTestLimiter(1, 0)
	l.sleep = sleepCtx // real sleep, cancelled context

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Fatal("Acquire with cancelled context should fail")
	}
}
