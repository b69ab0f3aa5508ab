package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counters
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Total number of SSO login attempts",
		},
	)

	// Authentication error counter
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // "sso_error", "esi_error", "invalid_token" etc.
	)

	// Sync sweep counters
	SyncSweepCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_sync_sweeps_total",
			Help: "Total number of membership sync sweeps started",
		},
	)

	SyncAbortCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_sync_aborts_total",
			Help: "Total number of sync sweeps aborted by upstream status",
		},
		[]string{"status"},
	)

	SyncCharactersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_sync_characters_created_total",
			Help: "Total number of characters created during sync sweeps",
		},
	)

	// Role operation counter
	RoleOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_role_operations_total",
			Help: "Total number of role operations",
		},
		[]string{"operation"}, // "add", "edit", "remove", "assign", "revoke"
	)

	// Application workflow counter
	ApplicationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_applications_total",
			Help: "Total number of application workflow operations",
		},
		[]string{"operation"}, // "apply", "withdraw", "remove", "ready"
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// HTTP request duration histogram
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auth_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)
)

// InitMetrics registers all metrics with the default registry
func InitMetrics() {
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(SyncSweepCounter)
	prometheus.MustRegister(SyncAbortCounter)
	prometheus.MustRegister(SyncCharactersCreated)
	prometheus.MustRegister(RoleOperationCounter)
	prometheus.MustRegister(ApplicationCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(HTTPRequestDuration)
}

// RecordAuthError increments the auth error counter for the given type
func RecordAuthError(errorType string) {
	AuthErrorCounter.WithLabelValues(errorType).Inc()
}

// MetricsMiddleware returns an Echo middleware that records request metrics
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			method := c.Request().Method
			path := c.Path()

			HTTPRequestCounter.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
			HTTPRequestDuration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// GetPrometheusHandler returns an HTTP handler for exposing Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}
