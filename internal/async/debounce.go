package async

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of calls into a single trailing invocation once
// the burst has been quiet for the configured delay.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

// NewDebouncer builds a debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &Debouncer{delay: delay}
}

// Call schedules fn to run after the quiet period, cancelling any previously
// scheduled invocation. fn runs on a timer goroutine.
func (d *Debouncer) Call(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending invocation.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Throttler permits at most one invocation per interval, on the leading edge.
type Throttler struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewThrottler builds a throttler with the given minimum interval.
func NewThrottler(interval time.Duration) *Throttler {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Throttler{interval: interval}
}

// Call invokes fn synchronously if the interval has elapsed since the last
// accepted call, and reports whether fn ran.
func (t *Throttler) Call(fn func()) bool {
	t.mu.Lock()
	now := time.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		t.mu.Unlock()
		return false
	}
	t.last = now
	t.mu.Unlock()

	fn()
	return true
}
