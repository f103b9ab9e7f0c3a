package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"ngrok-proxy-go/internal/model"
	"ngrok-proxy-go/internal/service"
)

// ErrorHandler returns an echo.HTTPErrorHandler for errors raised before or
// outside the forwarder, such as body limits or unsupported methods. Under
// prefix they are written in the forwarder's JSON error shape with its CORS
// headers; other routes fall back to Echo's default handler.
func ErrorHandler(e *echo.Echo, prefix string) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		path := c.Request().URL.Path
		if path != prefix && !strings.HasPrefix(path, prefix+"/") {
			e.DefaultHTTPErrorHandler(err, c)
			return
		}
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			message = http.StatusText(code)
			if m, ok := he.Message.(string); ok && m != "" {
				message = m
			}
		}

		service.ApplyCORS(c.Response().Header())

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, model.ErrorBody{
				Error:   http.StatusText(code),
				Message: message,
			})
		}
		if err != nil {
			c.Logger().Error(err)
		}
	}
}
