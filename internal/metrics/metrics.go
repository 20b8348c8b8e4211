package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vantrack_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vantrack_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	locationUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vantrack_location_updates_total",
			Help: "Total driver location upserts accepted",
		},
	)

	notificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vantrack_notifications_created_total",
			Help: "Notification rows created by type and priority",
		},
		[]string{"type", "priority"},
	)

	channelDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vantrack_channel_deliveries_total",
			Help: "Channel delivery attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	streamConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vantrack_stream_connections",
			Help: "Live delivery connections currently open",
		},
	)

	streamEventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vantrack_stream_events_total",
			Help: "Events written to live delivery streams by type",
		},
		[]string{"event"},
	)

	bucketDrained = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vantrack_bucket_drain_size",
			Help:    "Entries returned per bucket drain",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		},
	)

	rateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vantrack_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	alertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vantrack_alerts_raised_total",
			Help: "Alerts raised by the collector by metric and severity",
		},
		[]string{"metric", "severity"},
	)

	sweepRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vantrack_sweep_removed_total",
			Help: "Notification rows removed by the retention sweep",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLocationUpdate records an accepted driver location upsert
func RecordLocationUpdate() {
	locationUpdatesTotal.Inc()
}

// RecordNotificationCreated records a new notification row
func RecordNotificationCreated(notifType, priority string) {
	notificationsCreated.WithLabelValues(notifType, priority).Inc()
}

// RecordChannelDelivery records one channel delivery attempt
func RecordChannelDelivery(channel string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	channelDeliveries.WithLabelValues(channel, outcome).Inc()
}

// StreamConnected tracks a live delivery connection opening
func StreamConnected() {
	streamConnections.Inc()
}

// StreamDisconnected tracks a live delivery connection closing
func StreamDisconnected() {
	streamConnections.Dec()
}

// RecordStreamEvent records an event written to a live stream
func RecordStreamEvent(event string) {
	streamEventsSent.WithLabelValues(event).Inc()
}

// RecordBucketDrain records the size of one drain cycle
func RecordBucketDrain(n int) {
	bucketDrained.Observe(float64(n))
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection() {
	rateLimitRejections.Inc()
}

// RecordAlert records an alert raised by the collector
func RecordAlert(metric, severity string) {
	alertsRaised.WithLabelValues(metric, severity).Inc()
}

// RecordSweep records rows removed by the retention sweep
func RecordSweep(n int64) {
	sweepRemoved.Add(float64(n))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
