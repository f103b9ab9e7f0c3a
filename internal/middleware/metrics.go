package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"ngrok-proxy-go/internal/metrics"
)

// RequestMetrics records inbound request count, latency and concurrency.
// Requests for skipPaths, typically the scrape endpoint, are not counted.
func RequestMetrics(m *metrics.Metrics, skipPaths ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if slices.Contains(skipPaths, c.Request().URL.Path) {
				return next(c)
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			err := next(c)

			m.RequestsTotal.WithLabelValues(labels(c, m, err)...).Inc()
			m.RequestDuration.WithLabelValues(labels(c, m, err)...).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// labels returns method, status and path prefix for a finished request.
// Errors are not written until Echo's error handler runs, so their status
// is taken from the error itself.
func labels(c echo.Context, m *metrics.Metrics, err error) []string {
	code := c.Response().Status
	if err != nil && !c.Response().Committed {
		code = http.StatusInternalServerError
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
		}
	}
	return []string{
		metrics.NormalizeMethod(c.Request().Method),
		strconv.Itoa(code),
		m.NormalizePath(c.Request().URL.Path),
	}
}
