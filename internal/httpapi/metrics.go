package httpapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by method, route, and status.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "thoughtd",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by method, route, and status code.",
	}, []string{"method", "route", "status"})

	// RequestDuration observes request latency by method and route.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "thoughtd",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds by method and route.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"method", "route"})

	// ActiveRequests gauges requests currently in flight.
	ActiveRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "thoughtd",
		Subsystem: "http",
		Name:      "active_requests",
		Help:      "Number of HTTP requests currently being served.",
	})
)

// metricsMiddleware records request metrics. Routes are labeled by their
// registered pattern (e.g. /api/v1/sessions/:id/events), never the raw
// path, so parameter values cannot explode label cardinality.
func metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			method := c.Request().Method
			route := c.Path()
			if route == "" {
				route = "/"
			}

			ActiveRequests.Inc()
			err := next(c)
			ActiveRequests.Dec()

			RequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
