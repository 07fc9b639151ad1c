package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDuration       *prometheus.HistogramVec
	pushesSentTotal           prometheus.Counter
	pushesFailedTotal         *prometheus.CounterVec
	subscriptionsRemovedTotal prometheus.Counter
	pushSendDuration          prometheus.Histogram
	deliveryInflight          prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webpushd",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "webpushd",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		pushesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "webpushd",
				Name:      "pushes_sent_total",
				Help:      "Total number of push messages accepted by a push service.",
			},
		),
		pushesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webpushd",
				Name:      "pushes_failed_total",
				Help:      "Total number of failed delivery attempts by reason.",
			},
			[]string{"reason"},
		),
		subscriptionsRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "webpushd",
				Name:      "subscriptions_removed_total",
				Help:      "Total number of dead subscriptions pruned from the store.",
			},
		),
		pushSendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "webpushd",
				Name:      "push_send_duration_seconds",
				Help:      "Push service POST duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		deliveryInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "webpushd",
				Name:      "delivery_inflight",
				Help:      "Current number of in-flight subscription deliveries.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.pushesSentTotal,
		m.pushesFailedTotal,
		m.subscriptionsRemovedTotal,
		m.pushSendDuration,
		m.deliveryInflight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncPushSent() {
	if m == nil {
		return
	}
	m.pushesSentTotal.Inc()
}

func (m *Metrics) IncPushFailed(reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.pushesFailedTotal.WithLabelValues(reasonLabel).Inc()
}

func (m *Metrics) IncSubscriptionRemoved() {
	if m == nil {
		return
	}
	m.subscriptionsRemovedTotal.Inc()
}

func (m *Metrics) ObservePushSendDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.pushSendDuration.Observe(seconds)
}

func (m *Metrics) IncDeliveryInFlight() {
	if m == nil {
		return
	}
	m.deliveryInflight.Inc()
}

func (m *Metrics) DecDeliveryInFlight() {
	if m == nil {
		return
	}
	m.deliveryInflight.Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}
