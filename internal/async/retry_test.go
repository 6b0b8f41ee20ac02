package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	attempts := 0
	transient := errors.New("connection refused by upstream")

	_, err := Retry(context.Background(), RetryOptions{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
	}, func(context.Context) (int, error) {
		attempts++
		return 0, transient
	})

	require.Equal(t, 3, attempts)
	require.ErrorIs(t, err, transient)
}

func TestRetryStopsImmediatelyOnNonRetryableError(t *testing.T) {
	attempts := 0
	denied := errors.New("permission denied")

	_, err := Retry(context.Background(), RetryOptions{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
	}, func(context.Context) (int, error) {
		attempts++
		return 0, denied
	})

	require.Equal(t, 1, attempts)
	require.ErrorIs(t, err, denied)
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	var observed []int

	value, err := Retry(context.Background(), RetryOptions{
		MaxAttempts: 4,
		BaseDelay:   time.Millisecond,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			observed = append(observed, attempt)
			require.Positive(t, delay)
			require.Error(t, err)
		},
	}, func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("request timed out")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	require.Equal(t, "ok", value)
	require.Equal(t, 3, attempts)
	require.Equal(t, []int{1, 2}, observed)
}

func TestRetryBackoffSchedule(t *testing.T) {
	opts := RetryOptions{BaseDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond}.withDefaults()

	require.Equal(t, 100*time.Millisecond, opts.delayFor(1))
	require.Equal(t, 200*time.Millisecond, opts.delayFor(2))
	require.Equal(t, 400*time.Millisecond, opts.delayFor(3))
	require.Equal(t, 500*time.Millisecond, opts.delayFor(4))
	require.Equal(t, 500*time.Millisecond, opts.delayFor(10))

	fixed := RetryOptions{BaseDelay: 100 * time.Millisecond, FixedDelay: true}.withDefaults()
	require.Equal(t, 100*time.Millisecond, fixed.delayFor(1))
	require.Equal(t, 100*time.Millisecond, fixed.delayFor(7))
}

func TestRetryRespectsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transient := errors.New("dial tcp: connection reset by peer")
	attempts := 0

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Retry(ctx, RetryOptions{
		MaxAttempts: 10,
		BaseDelay:   time.Hour,
	}, func(context.Context) (int, error) {
		attempts++
		return 0, transient
	})

	require.Equal(t, 1, attempts)
	require.ErrorIs(t, err, transient)
}

func TestIsTransientClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"timeout text", errors.New("request timed out"), true},
		{"connection refused", errors.New("dial tcp 10.0.0.1:5432: connection refused"), true},
		{"reset", errors.New("read: connection reset by peer"), true},
		{"guard timeout", &TimeoutError{Message: "grading timed out"}, true},
		{"unavailable", errors.New("503 service unavailable"), true},
		{"auth", errors.New("invalid token"), false},
		{"permission", errors.New("insufficient permissions"), false},
		{"validation", errors.New("Field validation for 'Title' failed"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.transient, IsTransient(tc.err))
		})
	}
}
