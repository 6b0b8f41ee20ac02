package async

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds an operation when the caller supplies no deadline.
const DefaultTimeout = 30 * time.Second

// TimeoutError reports that an operation did not settle before its deadline.
type TimeoutError struct {
	Message string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("operation timed out after %s", e.After)
}

// IsTimeout reports whether err was produced by WithTimeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// WithTimeout races op against the given deadline and returns whichever
// settles first. On timeout the caller gets a *TimeoutError carrying message;
// the operation itself is not cancelled and keeps running in the background
// with its eventual result discarded. Callers that need cooperative
// cancellation must derive a cancellable context themselves.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, message string, op func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	type outcome struct {
		value T
		err   error
	}

	done := make(chan outcome, 1)
	go func() {
		value, err := op(ctx)
		done <- outcome{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case out := <-done:
		return out.value, out.err
	case <-timer.C:
		return zero, &TimeoutError{Message: message, After: timeout}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
