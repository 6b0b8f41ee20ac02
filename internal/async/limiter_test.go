package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterNeverExceedsLimit(t *testing.T) {
	const limit = 3
	const tasks = 20

	limiter := NewLimiter(limit)

	var running int64
	var peak int64
	var wg sync.WaitGroup

	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := limiter.Do(context.Background(), func(context.Context) error {
				current := atomic.AddInt64(&running, 1)
				for {
					observed := atomic.LoadInt64(&peak)
					if current <= observed || atomic.CompareAndSwapInt64(&peak, observed, current) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&running, -1)
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, atomic.LoadInt64(&peak), int64(limit))
}

func TestLimiterQueuedTasksStartInFIFOOrder(t *testing.T) {
	limiter := NewLimiter(1)

	release := make(chan struct{})
	occupied := make(chan struct{})
	go func() {
		_ = limiter.Do(context.Background(), func(context.Context) error {
			close(occupied)
			<-release
			return nil
		})
	}()
	<-occupied

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = limiter.Do(context.Background(), func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)
		// Wait until this waiter is queued so the queue order is deterministic.
		require.Eventually(t, func() bool {
			limiter.mu.Lock()
			defer limiter.mu.Unlock()
			return len(limiter.queue) == i+1
		}, time.Second, time.Millisecond)
	}

	close(release)
	wg.Wait()

	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestLimiterFailureStillDrainsQueue(t *testing.T) {
	limiter := NewLimiter(1)

	boom := errors.New("task exploded")
	err := limiter.Do(context.Background(), func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The failed task must have released its slot.
	ran := false
	err = limiter.Do(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
}

func TestLimiterCancelledWaiterAbandonsSlot(t *testing.T) {
	limiter := NewLimiter(1)

	release := make(chan struct{})
	occupied := make(chan struct{})
	go func() {
		_ = limiter.Do(context.Background(), func(context.Context) error {
			close(occupied)
			<-release
			return nil
		})
	}()
	<-occupied

	ctx, cancel := context.WithCancel(context.Background())
	waiterErr := make(chan error, 1)
	go func() {
		waiterErr <- limiter.Do(ctx, func(context.Context) error { return nil })
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-waiterErr, context.Canceled)

	close(release)

	// Capacity was not leaked by the abandoned waiter.
	err := limiter.Do(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
}

func TestRunWithReturnsTaskValue(t *testing.T) {
	limiter := NewLimiter(2)

	value, err := RunWith(context.Background(), limiter, func(context.Context) (string, error) {
		return "graded", nil
	})
	require.NoError(t, err)
	require.Equal(t, "graded", value)
}
