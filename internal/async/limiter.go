package async

import (
	"context"
	"sync"
)

// Limiter is a bounded-parallelism task runner. At most max tasks run at any
// instant; tasks submitted beyond the limit wait in a FIFO queue and start in
// submission order as slots free up. Completion order is not guaranteed.
//
// Construct one Limiter per logical scope (for example per batch operation);
// instances must not be shared across batches that need independent budgets.
type Limiter struct {
	mu      sync.Mutex
	max     int
	running int
	queue   []chan struct{}
}

// NewLimiter builds a limiter allowing at most max concurrent tasks.
func NewLimiter(max int) *Limiter {
	if max <= 0 {
		max = 1
	}
	return &Limiter{max: max}
}

// Do runs fn once a concurrency slot is available and releases the slot when
// fn returns, regardless of outcome. Waiting is abandoned if ctx is cancelled
// before the slot is granted.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()
	return fn(ctx)
}

// RunWith schedules a result-bearing task on l with the same queueing
// semantics as Limiter.Do.
func RunWith[T any](ctx context.Context, l *Limiter, fn func(context.Context) (T, error)) (T, error) {
	var value T
	err := l.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		value, innerErr = fn(ctx)
		return innerErr
	})
	return value, err
}

func (l *Limiter) acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.running < l.max {
		l.running++
		l.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	l.queue = append(l.queue, ready)
	limiterQueueDepth.Inc()
	l.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, waiter := range l.queue {
			if waiter == ready {
				l.queue = append(l.queue[:i], l.queue[i+1:]...)
				limiterQueueDepth.Dec()
				l.mu.Unlock()
				return ctx.Err()
			}
		}
		l.mu.Unlock()
		// The slot was granted concurrently with cancellation; hand it on.
		l.release()
		return ctx.Err()
	}
}

// release frees a slot. A queued waiter, if any, inherits the slot directly
// so the running count never exceeds max and queued tasks start in FIFO order.
func (l *Limiter) release() {
	l.mu.Lock()
	if len(l.queue) > 0 {
		next := l.queue[0]
		l.queue = l.queue[1:]
		limiterQueueDepth.Dec()
		close(next)
		l.mu.Unlock()
		return
	}
	l.running--
	l.mu.Unlock()
}
