package async

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalescesBursts(t *testing.T) {
	debouncer := NewDebouncer(20 * time.Millisecond)
	defer debouncer.Stop()

	var calls int64
	for i := 0; i < 5; i++ {
		debouncer.Call(func() { atomic.AddInt64(&calls, 1) })
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&calls) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDebouncerStopCancelsPendingCall(t *testing.T) {
	debouncer := NewDebouncer(20 * time.Millisecond)

	var calls int64
	debouncer.Call(func() { atomic.AddInt64(&calls, 1) })
	debouncer.Stop()

	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 0, atomic.LoadInt64(&calls))
}

func TestThrottlerLimitsRate(t *testing.T) {
	throttler := NewThrottler(50 * time.Millisecond)

	var calls int
	for i := 0; i < 10; i++ {
		throttler.Call(func() { calls++ })
	}
	require.Equal(t, 1, calls)

	time.Sleep(60 * time.Millisecond)
	invoked := throttler.Call(func() { calls++ })
	require.True(t, invoked)
	require.Equal(t, 2, calls)
}
