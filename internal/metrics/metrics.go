package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter counts all HTTP requests with labels
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	// RequestDurationHistogram records request duration in seconds
	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	StatusCategoryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_status_category_total",
			Help: "Total number of responses by status category (2xx, 4xx, 5xx)",
		},
		[]string{"service", "category"},
	)

	// EntitlementRejections counts requests refused by a subscription check.
	EntitlementRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ev_entitlement_rejections_total",
			Help: "Requests rejected by entitlement checks",
		},
		[]string{"check"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ev_events_published_total",
			Help: "Domain events handed to the broker",
		},
		[]string{"type", "result"},
	)

	SubscriptionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ev_subscriptions_expired_total",
			Help: "Subscriptions moved to expired by the sweep",
		},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDurationHistogram,
			StatusCategoryCounter,
			EntitlementRejections,
			EventsPublished,
			SubscriptionsExpired,
		)
	})
}

// HTTPMetrics holds configuration and state for HTTP metrics collection
type HTTPMetrics struct {
	ServiceName string
}

func NewHTTPMetrics(serviceName string) *HTTPMetrics {
	Register()
	return &HTTPMetrics{ServiceName: serviceName}
}

// Middleware records count, latency and status category per route.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
				err = nil
			}

			status := c.Response().Status
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			statusStr := strconv.Itoa(status)
			RequestCounter.WithLabelValues(m.ServiceName, c.Request().Method, path, statusStr).Inc()
			RequestDurationHistogram.WithLabelValues(m.ServiceName, c.Request().Method, path, statusStr).
				Observe(time.Since(start).Seconds())
			if cat := category(status); cat != "" {
				StatusCategoryCounter.WithLabelValues(m.ServiceName, cat).Inc()
			}
			return err
		}
	}
}

func category(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	}
	return ""
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
