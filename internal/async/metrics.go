package async

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exam",
		Subsystem: "async",
		Name:      "retry_attempts_total",
		Help:      "Number of failed attempts that were scheduled for a retry",
	}, []string{"operation"})

	batchItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exam",
		Subsystem: "async",
		Name:      "batch_items_total",
		Help:      "Number of batch items processed, by outcome",
	}, []string{"outcome"})

	limiterQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "exam",
		Subsystem: "async",
		Name:      "limiter_queue_depth",
		Help:      "Tasks currently waiting for a concurrency slot",
	})
)
