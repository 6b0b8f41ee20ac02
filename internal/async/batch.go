package async

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// DefaultBatchConcurrency bounds a batch when no explicit limit is supplied.
const DefaultBatchConcurrency = 5

// BatchFailure records one item that could not be processed.
type BatchFailure struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// BatchResult aggregates a batch run. Succeeded+Failed always equals the
// number of input items; Failures preserves input order.
type BatchResult struct {
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Failures  []BatchFailure `json:"failures,omitempty"`
}

// Summary renders counts plus at most limit failure messages, for user-facing
// reporting that should not dump every raw error.
func (r BatchResult) Summary(limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d succeeded, %d failed", r.Succeeded, r.Failed)
	if limit <= 0 {
		limit = 3
	}
	for i, failure := range r.Failures {
		if i >= limit {
			fmt.Fprintf(&b, "; and %d more", len(r.Failures)-limit)
			break
		}
		fmt.Fprintf(&b, "; %s: %s", failure.ID, failure.Message)
	}
	return b.String()
}

// BatchOptions tunes RunBatch.
type BatchOptions struct {
	// Concurrency bounds in-flight per-item operations. Defaults to
	// DefaultBatchConcurrency.
	Concurrency int
	// OnProgress, when set, is invoked after every settled item with the
	// number of settled items so far. Called from worker goroutines.
	OnProgress func(done, total int, id string, err error)
}

// RunBatch executes op for every id under the configured concurrency limit,
// using a fresh Limiter so unrelated batches never share a budget. One item
// failing is caught, recorded against its identifier, and never aborts the
// remaining items. Items are started in input order; their failures are
// reported in input order regardless of completion order.
func RunBatch(ctx context.Context, ids []string, opts BatchOptions, op func(ctx context.Context, id string) error) BatchResult {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultBatchConcurrency
	}

	limiter := NewLimiter(opts.Concurrency)
	outcomes := make([]error, len(ids))

	var wg sync.WaitGroup
	var progressMu sync.Mutex
	settled := 0

	notify := func(id string, err error) {
		if opts.OnProgress == nil {
			progressMu.Lock()
			settled++
			progressMu.Unlock()
			return
		}
		progressMu.Lock()
		settled++
		done := settled
		progressMu.Unlock()
		opts.OnProgress(done, len(ids), id, err)
	}

	for i, id := range ids {
		// Acquire synchronously so queued items keep strict input order.
		if err := limiter.acquire(ctx); err != nil {
			outcomes[i] = err
			notify(id, err)
			continue
		}

		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			defer limiter.release()
			err := op(ctx, id)
			outcomes[i] = err
			notify(id, err)
		}(i, id)
	}
	wg.Wait()

	result := BatchResult{}
	for i, err := range outcomes {
		if err == nil {
			result.Succeeded++
			batchItems.WithLabelValues("success").Inc()
			continue
		}
		result.Failed++
		batchItems.WithLabelValues("failure").Inc()
		result.Failures = append(result.Failures, BatchFailure{ID: ids[i], Message: err.Error()})
	}
	return result
}
