package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dispatchd/notification-dispatcher/internal/domain"
)

// Metrics holds Prometheus metrics
type Metrics struct {
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	notificationsSent    *prometheus.CounterVec
	notificationsFailed  *prometheus.CounterVec
	notificationsRetried *prometheus.CounterVec
	queueDepth           *prometheus.GaugeVec
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		notificationsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_sent_total",
				Help: "Total number of notifications sent successfully",
			},
			[]string{"channel"},
		),
		notificationsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_failed_total",
				Help: "Total number of notifications moved to the failed queue",
			},
			[]string{"channel", "reason"},
		),
		notificationsRetried: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_retried_total",
				Help: "Total number of delivery retries pushed back to the queue",
			},
			[]string{"channel"},
		),
		queueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "notification_queue_depth",
				Help: "Current depth of the notification queues",
			},
			[]string{"queue"},
		),
	}
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSent records a successful notification send
func (m *Metrics) RecordSent(channel string) {
	m.notificationsSent.WithLabelValues(channel).Inc()
}

// RecordFailed records a notification moved to the failed queue
func (m *Metrics) RecordFailed(channel, reason string) {
	m.notificationsFailed.WithLabelValues(channel, reason).Inc()
}

// RecordRetry records a delivery retry
func (m *Metrics) RecordRetry(channel string) {
	m.notificationsRetried.WithLabelValues(channel).Inc()
}

// SetQueueDepth sets the current depth of a queue
func (m *Metrics) SetQueueDepth(queue string, depth float64) {
	m.queueDepth.WithLabelValues(queue).Set(depth)
}

// MetricsHandler handles metrics endpoints
type MetricsHandler struct {
	metrics  *Metrics
	queue    domain.Queue
	queueKey string
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(metrics *Metrics, queue domain.Queue, queueKey string) *MetricsHandler {
	return &MetricsHandler{
		metrics:  metrics,
		queue:    queue,
		queueKey: queueKey,
	}
}

// Handler returns the Prometheus HTTP handler
func (h *MetricsHandler) Handler() http.Handler {
	return promhttp.Handler()
}

// QueueMetrics represents real-time queue metrics
type QueueMetrics struct {
	Pending int64 `json:"pending_depth"`
	Failed  int64 `json:"failed_depth"`
}

// RealtimeMetrics reports the live depth of the work queue and the
// dead-letter queue.
func (h *MetricsHandler) RealtimeMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pending, err := h.queue.Depth(ctx, h.queueKey)
	if err != nil {
		JSONMessages(w, http.StatusInternalServerError, "failed to read queue depth")
		return
	}

	failed, err := h.queue.Depth(ctx, domain.FailedQueueKey(h.queueKey))
	if err != nil {
		JSONMessages(w, http.StatusInternalServerError, "failed to read failed queue depth")
		return
	}

	h.metrics.SetQueueDepth(h.queueKey, float64(pending))
	h.metrics.SetQueueDepth(domain.FailedQueueKey(h.queueKey), float64(failed))

	JSON(w, http.StatusOK, QueueMetrics{Pending: pending, Failed: failed})
}
