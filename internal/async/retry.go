package async

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// Defaults applied by RetryOptions.withDefaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 10 * time.Second
)

// RetryOptions configures Retry. The zero value retries transient errors up
// to three attempts with exponential backoff capped at DefaultMaxDelay.
type RetryOptions struct {
	// Name labels the operation in metrics and observer callbacks.
	Name string
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int
	// BaseDelay seeds the backoff schedule.
	BaseDelay time.Duration
	// MaxDelay caps the exponential schedule.
	MaxDelay time.Duration
	// FixedDelay disables exponential growth and waits BaseDelay between
	// every attempt.
	FixedDelay bool
	// ShouldRetry decides whether the error observed on the given attempt
	// warrants another try. Defaults to IsTransient.
	ShouldRetry func(err error, attempt int) bool
	// OnRetry is notified after each failed attempt that will be retried,
	// with the attempt index and the delay that will be awaited.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.Name == "" {
		o.Name = "operation"
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.ShouldRetry == nil {
		o.ShouldRetry = func(err error, _ int) bool { return IsTransient(err) }
	}
	return o
}

// delayFor computes the wait before the attempt following attempt n (n >= 1):
// min(BaseDelay * 2^(n-1), MaxDelay) under exponential backoff, else BaseDelay.
func (o RetryOptions) delayFor(attempt int) time.Duration {
	if o.FixedDelay {
		return o.BaseDelay
	}
	delay := o.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= o.MaxDelay {
			return o.MaxDelay
		}
	}
	if delay > o.MaxDelay {
		return o.MaxDelay
	}
	return delay
}

// Retry invokes op until it succeeds, ShouldRetry rejects the error, or
// MaxAttempts is exhausted. The last observed error is returned unmodified so
// callers can match on sentinel errors. Backoff waits respect ctx
// cancellation; retry state lives entirely within this call.
func Retry[T any](ctx context.Context, opts RetryOptions, op func(context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()

	var zero T
	var lastErr error

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempt == opts.MaxAttempts || !opts.ShouldRetry(err, attempt) {
			break
		}

		delay := opts.delayFor(attempt)
		retryAttempts.WithLabelValues(opts.Name).Inc()
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		}
	}

	return zero, lastErr
}

var transientIndicators = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"temporarily unavailable",
	"service unavailable",
	"too many requests",
	"unexpected eof",
}

// IsTransient classifies an error as likely to succeed on a retry. Network
// and timeout failures qualify; authentication, permission and validation
// failures never do. The classification is pluggable per call site via
// RetryOptions.ShouldRetry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if IsTimeout(err) {
		return true
	}

	message := strings.ToLower(err.Error())
	for _, indicator := range transientIndicators {
		if strings.Contains(message, indicator) {
			return true
		}
	}
	return false
}
