package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_http_requests_total",
			Help: "Total number of HTTP requests processed by the sync service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsync_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_ws_active_connections",
			Help: "Number of active websocket endpoints.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
	wsDroppedPayloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_ws_dropped_payloads_total",
			Help: "Push payloads dropped because an endpoint send queue was full.",
		},
	)
	statusTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_status_transitions_total",
			Help: "Total number of applied message status transitions.",
		},
		[]string{"to"},
	)
	statusDowngradesRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_status_downgrades_rejected_total",
			Help: "Status transition attempts rejected because the message already carried a later status.",
		},
	)
	unreadReconciliationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_unread_reconciliations_total",
			Help: "Total number of unread counter recomputations from the message store.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		wsDroppedPayloadsTotal,
		statusTransitionsTotal,
		statusDowngradesRejectedTotal,
		unreadReconciliationsTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies per route.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncWSDroppedPayload() {
	wsDroppedPayloadsTotal.Inc()
}

func IncStatusTransition(to string, count int) {
	statusTransitionsTotal.WithLabelValues(to).Add(float64(count))
}

func IncStatusDowngradeRejected() {
	statusDowngradesRejectedTotal.Inc()
}

func IncUnreadReconciliation() {
	unreadReconciliationsTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
