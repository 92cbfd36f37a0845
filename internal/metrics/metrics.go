package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.DefaultRegisterer

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by path/method/code.",
		},
		[]string{"path", "method", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by path/method/code.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "code"},
	)

	teamEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "team_events_total",
			Help: "Team protocol events by operation and result.",
		},
		[]string{"op", "result"},
	)

	teamsCleaned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "teams_cleaned_total",
			Help: "Dead team proposals removed by cleanup sweeps.",
		},
	)
)

func EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			if path == "/metrics" || strings.HasPrefix(path, "/debug/pprof/") {
				return err
			}

			code := strconv.Itoa(c.Response().Status)
			method := c.Request().Method

			httpRequests.WithLabelValues(path, method, code).Inc()
			httpDuration.WithLabelValues(path, method, code).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

func ObserveTeamOp(op string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	teamEvents.WithLabelValues(op, result).Inc()
}

func AddTeamsCleaned(n int) {
	teamsCleaned.Add(float64(n))
}

func init() {
	collectors := []prometheus.Collector{
		httpRequests,
		httpDuration,
		teamEvents,
		teamsCleaned,
	}

	for _, c := range collectors {
		_ = registry.Register(c)
	}
}
