package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"ngrok-proxy-go/internal/model"
	"ngrok-proxy-go/internal/service"
)

// RateLimiter returns a per-client-IP limiter. Rejected requests get the
// proxy's JSON error shape and the CORS headers browsers need to read it.
func RateLimiter(rps float64) echo.MiddlewareFunc {
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: echomw.NewRateLimiterMemoryStore(rate.Limit(rps)),
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			service.ApplyCORS(c.Response().Header())
			return c.JSON(http.StatusTooManyRequests, model.ErrorBody{
				Error:   "Rate Limited",
				Message: "too many requests from " + identifier,
			})
		},
	})
}
