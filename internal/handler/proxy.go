package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"ngrok-proxy-go/internal/model"
	"ngrok-proxy-go/internal/service"
)

// ProxyHandler forwards requests under the proxy prefix to the upstream origin.
type ProxyHandler struct {
	forwarder *service.Forwarder
	logger    *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(f *service.Forwarder, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		forwarder: f,
		logger:    logger.With("component", "proxy_handler"),
	}
}

// Handle reads the inbound request, forwards it and writes the relayed
// response. Errors from the upstream never surface here; the forwarder turns
// them into JSON error bodies.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		h.logger.Warn("reading request body", "err", err, "path", req.URL.Path)
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable request body").SetInternal(fmt.Errorf("read body: %w", err))
	}

	resp := h.forwarder.Handle(&model.InboundRequest{
		Ctx:    req.Context(),
		Method: req.Method,
		RawURL: req.URL.RequestURI(),
		Header: req.Header,
		Body:   model.RawBody(body),
	})

	return writeResponse(c, resp)
}

func writeResponse(c echo.Context, resp *model.ProxyResponse) error {
	dst := c.Response().Header()
	for key, vals := range resp.Header {
		for _, v := range vals {
			dst.Add(key, v)
		}
	}

	switch {
	case resp.JSON:
		return c.JSONBlob(resp.StatusCode, resp.Body)
	case len(resp.Body) == 0:
		return c.NoContent(resp.StatusCode)
	default:
		ct := resp.Header.Get(echo.HeaderContentType)
		if ct == "" {
			ct = echo.MIMETextPlainCharsetUTF8
		}
		return c.Blob(resp.StatusCode, ct, resp.Body)
	}
}
