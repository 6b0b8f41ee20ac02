package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	gradedSubmissionsTotal *prometheus.CounterVec
	gradedQuestionsTotal   *prometheus.CounterVec
	batchOperationsTotal   *prometheus.CounterVec
	notificationsPublished *prometheus.CounterVec
	sseClientsActive       prometheus.Gauge
	batchProgressClients   prometheus.Gauge
	uploadRequestsTotal    *prometheus.CounterVec
	uploadRejectedTotal    *prometheus.CounterVec
	uploadLatencySeconds   prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used by the exam API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exam_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		gradedSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_graded_submissions_total",
			Help: "Total number of submissions graded, by final status.",
		}, []string{"status"})

		gradedQuestionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_graded_questions_total",
			Help: "Total number of questions graded, by kind and grading status.",
		}, []string{"kind", "status"})

		batchOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_batch_operations_total",
			Help: "Total number of bulk admin operations, by operation and outcome.",
		}, []string{"operation", "outcome"})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_notifications_published_total",
			Help: "Total number of notifications published, by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exam_sse_clients_active",
			Help: "Number of currently connected SSE notification clients.",
		})

		batchProgressClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exam_batch_progress_clients_active",
			Help: "Number of websocket clients watching bulk operation progress.",
		})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_upload_requests_total",
			Help: "Total number of accepted uploads, by detected MIME type.",
		}, []string{"mime"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_upload_rejected_total",
			Help: "Total number of rejected uploads, by reason.",
		}, []string{"reason"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "exam_upload_latency_seconds",
			Help:    "Latency distribution for upload handling.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			gradedSubmissionsTotal,
			gradedQuestionsTotal,
			batchOperationsTotal,
			notificationsPublished,
			sseClientsActive,
			batchProgressClients,
			uploadRequestsTotal,
			uploadRejectedTotal,
			uploadLatencySeconds,
		)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// Latency exposes the latency histogram for API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// Errors exposes the counter for API error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// GradedSubmissionsTotal exposes the counter for graded submissions.
func GradedSubmissionsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return gradedSubmissionsTotal
}

// GradedQuestionsTotal exposes the counter for graded questions.
func GradedQuestionsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return gradedQuestionsTotal
}

// BatchOperationsTotal exposes the counter for bulk admin operations.
func BatchOperationsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return batchOperationsTotal
}

// NotificationsPublishedTotal exposes the counter for published notifications.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// SSEClientsActive exposes the gauge of connected SSE clients.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// BatchProgressClientsActive exposes the gauge of connected progress watchers.
func BatchProgressClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return batchProgressClients
}

// UploadRequests exposes the counter for accepted uploads.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected exposes the counter for rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency exposes the upload latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}
