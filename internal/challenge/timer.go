package challenge

import (
	"context"
	"sync"
	"time"
)

// DefaultDuration is the challenge time budget.
const DefaultDuration = 30 * time.Minute

// TimerOptions configures a Timer. Zero values fall back to defaults.
type TimerOptions struct {
	// Interval between periodic recomputations, one second by default.
	Interval time.Duration
	Now      func() time.Time
	// OnTick receives the remaining time after every recomputation.
	OnTick func(left time.Duration)
	// OnExpire runs once, the first time the remaining time reaches zero.
	OnExpire func()
}

// Timer is a fixed-duration countdown. The remaining time is always derived
// from the clock, so delayed or skipped ticks never cause drift.
type Timer struct {
	duration time.Duration
	start    time.Time
	interval time.Duration
	now      func() time.Time
	onTick   func(time.Duration)
	onExpire func()

	mu      sync.Mutex
	expired bool
	stopped bool

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewTimer(duration time.Duration, start time.Time, opts TimerOptions) *Timer {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Timer{
		duration: duration,
		start:    start,
		interval: opts.Interval,
		now:      opts.Now,
		onTick:   opts.OnTick,
		onExpire: opts.OnExpire,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// TimeLeft returns max(0, duration - (now - start)).
func (t *Timer) TimeLeft() time.Duration {
	left := t.duration - t.now().Sub(t.start)
	if left < 0 {
		return 0
	}
	return left
}

// Elapsed is the share of the budget already used.
func (t *Timer) Elapsed() time.Duration {
	return t.duration - t.TimeLeft()
}

// Duration returns the full budget.
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Recompute refreshes the remaining time, notifies OnTick and fires OnExpire
// when the budget is exhausted. It does nothing once stopped.
func (t *Timer) Recompute() time.Duration {
	left := t.TimeLeft()

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return left
	}
	fire := left == 0 && !t.expired
	if fire {
		t.expired = true
	}
	t.mu.Unlock()

	if t.onTick != nil {
		t.onTick(left)
	}
	if fire && t.onExpire != nil {
		t.onExpire()
	}
	return left
}

// Run recomputes every interval and on every Wake until the context is
// cancelled, the timer is stopped, or the budget expires.
func (t *Timer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	if t.Recompute() == 0 {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case <-ticker.C:
		case <-t.wake:
		}
		if t.Recompute() == 0 {
			return
		}
	}
}

// Wake forces an immediate recomputation, e.g. when the host becomes visible again.
func (t *Timer) Wake() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Stop tears the timer down. No expiry fires afterwards. Safe to call repeatedly.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		t.mu.Unlock()
		close(t.done)
	})
}

// Expired reports whether the expiry has fired.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}
