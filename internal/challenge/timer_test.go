package challenge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTimeLeftClampsAtZero(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(1800*time.Second, clock.Now(), TimerOptions{Now: clock.Now})

	clock.Advance(1805 * time.Second)
	if left := timer.TimeLeft(); left != 0 {
		t.Fatalf("expected 0 time left, got %v", left)
	}
	if timer.Elapsed() != 1800*time.Second {
		t.Fatalf("elapsed should cap at the duration, got %v", timer.Elapsed())
	}
}

func TestTimeLeftIsDerivedFromClock(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(time.Minute, clock.Now(), TimerOptions{Now: clock.Now})

	// no recomputation happens while "suspended"
	clock.Advance(45 * time.Second)
	if left := timer.Recompute(); left != 15*time.Second {
		t.Fatalf("expected 15s left, got %v", left)
	}
}

func TestExpiryFiresOnce(t *testing.T) {
	clock := newFakeClock()
	var fired atomic.Int32
	timer := NewTimer(time.Minute, clock.Now(), TimerOptions{
		Now:      clock.Now,
		OnExpire: func() { fired.Add(1) },
	})

	clock.Advance(2 * time.Minute)
	timer.Recompute()
	timer.Recompute()
	if fired.Load() != 1 || !timer.Expired() {
		t.Fatalf("expected a single expiry, got %d", fired.Load())
	}
}

func TestStopPreventsExpiry(t *testing.T) {
	clock := newFakeClock()
	var fired atomic.Int32
	timer := NewTimer(time.Minute, clock.Now(), TimerOptions{
		Now:      clock.Now,
		OnExpire: func() { fired.Add(1) },
	})

	timer.Stop()
	timer.Stop()
	clock.Advance(2 * time.Minute)
	timer.Recompute()
	if fired.Load() != 0 {
		t.Fatalf("expiry fired after stop")
	}
}

func TestWakeRecomputesImmediately(t *testing.T) {
	clock := newFakeClock()
	expired := make(chan struct{})
	timer := NewTimer(time.Minute, clock.Now(), TimerOptions{
		Interval: time.Hour,
		Now:      clock.Now,
		OnExpire: func() { close(expired) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		timer.Run(ctx)
		close(done)
	}()

	clock.Advance(time.Minute + time.Second)
	timer.Wake()

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatalf("wake did not trigger expiry")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after expiry")
	}
}
