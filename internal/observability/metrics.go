package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec

	notificationsDispatchedTotal *prometheus.CounterVec
	notificationTriggersTotal    *prometheus.CounterVec

	trackerTicksTotal        prometheus.Counter
	trackerCrossingsTotal    *prometheus.CounterVec
	trackerUnitFailuresTotal *prometheus.CounterVec
	trackerTickSeconds       prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors of the notifier.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		notificationsDispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Notification e-mails attempted, by template and outcome.",
		}, []string{"template", "status"})

		notificationTriggersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_triggers_total",
			Help: "Notification triggers handled, by event kind and outcome.",
		}, []string{"kind", "outcome"})

		trackerTicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deadline_tracker_ticks_total",
			Help: "Deadline tracker scans executed.",
		})

		trackerCrossingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deadline_tracker_crossings_total",
			Help: "Deadline crossings fired by the tracker.",
		}, []string{"kind"})

		trackerUnitFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deadline_tracker_unit_failures_total",
			Help: "Assignment deadline evaluations that failed within a tick.",
		}, []string{"kind"})

		trackerTickSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deadline_tracker_tick_seconds",
			Help:    "Duration of deadline tracker scans.",
			Buckets: prometheus.DefBuckets,
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			notificationsDispatchedTotal,
			notificationTriggersTotal,
			trackerTicksTotal,
			trackerCrossingsTotal,
			trackerUnitFailuresTotal,
			trackerTickSeconds,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// NotificationsDispatched counts individual e-mail attempts.
func NotificationsDispatched() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsDispatchedTotal
}

// NotificationTriggers counts handled triggers.
func NotificationTriggers() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationTriggersTotal
}

// TrackerTicks counts tracker scans.
func TrackerTicks() prometheus.Counter {
	RegisterMetrics()
	return trackerTicksTotal
}

// TrackerCrossings counts fired deadline crossings.
func TrackerCrossings() *prometheus.CounterVec {
	RegisterMetrics()
	return trackerCrossingsTotal
}

// TrackerUnitFailures counts failed (assignment, deadline kind) evaluations.
func TrackerUnitFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return trackerUnitFailuresTotal
}

// TrackerTickDuration exposes the tick duration histogram.
func TrackerTickDuration() prometheus.Histogram {
	RegisterMetrics()
	return trackerTickSeconds
}

// MetricsHandler serves the scrape endpoint. OpenMetrics is negotiated when the scraper asks for it.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}
