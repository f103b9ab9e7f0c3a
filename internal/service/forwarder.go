// Package service implements the core proxy forwarding logic.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"ngrok-proxy-go/internal/config"
	"ngrok-proxy-go/internal/metrics"
	"ngrok-proxy-go/internal/model"
)

// ErrNotConfigured is reported when the upstream base URL is unset, the
// placeholder, or malformed.
var ErrNotConfigured = errors.New("upstream base URL is not configured")

// Error bodies returned to clients.
const (
	configErrorKind    = "NGROK_URL not configured"
	configErrorMessage = "Please set the NGROK_URL environment variable"

	proxyErrorKind    = "Proxy Error"
	proxyErrorDetails = "Failed to connect to local server. Is ngrok running?"

	decodeErrorKind    = "Upstream Decode Error"
	decodeErrorDetails = "Upstream declared application/json but sent an invalid body"
)

const (
	preflightAllowMethods = "GET,POST,PUT,DELETE,PATCH,OPTIONS"
	preflightAllowHeaders = "Content-Type,Authorization,X-Requested-With"
)

// droppedRequestHeaders are never forwarded upstream. Accept-Encoding is
// left to the transport so compressed replies are decoded before relay.
var droppedRequestHeaders = []string{
	"Host",
	"X-Forwarded-For",
	"X-Forwarded-Proto",
	"X-Vercel-Id",
	"X-Vercel-Cache",
	"Content-Length",
	"Accept-Encoding",
}

// droppedResponseHeaders describe the upstream encoding of a body that is
// re-serialized before it reaches the client.
var droppedResponseHeaders = map[string]bool{
	"Content-Encoding":  true,
	"Transfer-Encoding": true,
	"Content-Length":    true,
}

// Upstream performs the single outbound call for a forwarded request.
type Upstream interface {
	Do(ctx context.Context, out *model.OutboundRequest) (*model.UpstreamResponse, error)
}

// Forwarder rewrites inbound requests onto the upstream origin and turns the
// upstream reply, or any failure, into a client response.
type Forwarder struct {
	upstream    Upstream
	baseURL     string
	configured  bool
	prefix      string
	userAgent   string
	dropHeaders []string
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewForwarder creates a Forwarder from the resolved configuration.
// The metrics parameter is optional.
func NewForwarder(up Upstream, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Forwarder {
	prefix := cfg.Proxy.Prefix
	if prefix == "" {
		prefix = config.DefaultPrefix
	}
	userAgent := cfg.Proxy.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}

	return &Forwarder{
		upstream:    up,
		baseURL:     cfg.Upstream.BaseURL,
		configured:  cfg.Upstream.Ready(),
		prefix:      prefix,
		userAgent:   userAgent,
		dropHeaders: append(slices.Clone(droppedRequestHeaders), cfg.Proxy.StripRequestHeaders...),
		logger:      logger.With("component", "forwarder"),
		metrics:     m,
	}
}

// Handle forwards req and always returns a response to write back.
// OPTIONS requests are answered locally as CORS pre-flights.
func (f *Forwarder) Handle(req *model.InboundRequest) *model.ProxyResponse {
	f.logger.Info("inbound request", "method", req.Method, "url", req.RawURL)

	if req.Method == http.MethodOptions {
		f.metrics.ObserveOutcome(metrics.OutcomePreflight)
		resp := preflightResponse()
		f.logger.Info("response", "method", req.Method, "status", resp.StatusCode)
		return resp
	}

	resp := f.forward(req)
	ApplyCORS(resp.Header)

	f.logger.Info("response", "method", req.Method, "status", resp.StatusCode)
	return resp
}

func (f *Forwarder) forward(req *model.InboundRequest) (resp *model.ProxyResponse) {
	defer func() {
		if r := recover(); r != nil {
			resp = f.proxyFailure(fmt.Errorf("panic: %v", r))
		}
	}()

	if !f.configured {
		f.logger.Error("refusing to forward", "err", ErrNotConfigured)
		f.metrics.ObserveOutcome(metrics.OutcomeConfigError)
		return errorResponse(http.StatusInternalServerError, model.ErrorBody{
			Error:   configErrorKind,
			Message: configErrorMessage,
		})
	}

	out, err := f.buildOutbound(req)
	if err != nil {
		return f.proxyFailure(err)
	}

	f.logger.Info("proxying request", "method", out.Method, "target", out.URL)

	ctx := req.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	up, err := f.upstream.Do(ctx, out)
	if err != nil {
		return f.proxyFailure(err)
	}

	resp, err = relay(up)
	if err != nil {
		f.logger.Error("decode upstream response", "err", err, "status", up.StatusCode)
		f.metrics.ObserveOutcome(metrics.OutcomeDecodeError)
		return errorResponse(http.StatusBadGateway, model.ErrorBody{
			Error:   decodeErrorKind,
			Message: err.Error(),
			Details: decodeErrorDetails,
		})
	}

	f.metrics.ObserveOutcome(metrics.OutcomeForwarded)
	return resp
}

func (f *Forwarder) buildOutbound(req *model.InboundRequest) (*model.OutboundRequest, error) {
	_, rawQuery, _ := strings.Cut(req.RawURL, "?")
	target := BuildTargetURL(f.baseURL, ExtractPath(req.RawURL, f.prefix), rawQuery)

	header := FilterRequestHeaders(req.Header, f.dropHeaders)
	header.Set("User-Agent", f.userAgent)

	out := &model.OutboundRequest{
		Method: req.Method,
		URL:    target,
		Header: header,
	}

	if req.Method != http.MethodGet && req.Method != http.MethodHead && !req.Body.IsEmpty() {
		body, err := req.Body.Encode()
		if err != nil {
			return nil, err
		}
		out.Body = body
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", "application/json")
		}
	}

	return out, nil
}

func (f *Forwarder) proxyFailure(err error) *model.ProxyResponse {
	f.logger.Error("proxy error", "err", err)
	f.metrics.ObserveOutcome(metrics.OutcomeProxyError)
	return errorResponse(http.StatusInternalServerError, model.ErrorBody{
		Error:   proxyErrorKind,
		Message: err.Error(),
		Details: proxyErrorDetails,
	})
}

// relay converts an upstream reply into the client response. JSON bodies are
// validated and compacted; anything else is passed through verbatim.
func relay(up *model.UpstreamResponse) (*model.ProxyResponse, error) {
	resp := &model.ProxyResponse{
		StatusCode: up.StatusCode,
		Header:     FilterResponseHeaders(up.Header),
	}
	if len(up.Body) == 0 {
		return resp, nil
	}

	if !IsJSONContentType(up.Header.Get("Content-Type")) {
		resp.Body = up.Body
		return resp, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, up.Body); err != nil {
		return nil, fmt.Errorf("decode upstream JSON: %w", err)
	}
	resp.Body = buf.Bytes()
	resp.JSON = true
	return resp, nil
}

// ExtractPath returns the part of rawURL's path that follows prefix, without
// the query string. The prefix only matches whole segments; a bare "/" left
// after it counts as empty. Paths outside the prefix are returned unchanged.
func ExtractPath(rawURL, prefix string) string {
	path, _, _ := strings.Cut(rawURL, "?")
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok || (rest != "" && rest[0] != '/') {
		return path
	}
	if rest == "/" {
		return ""
	}
	return rest
}

// BuildTargetURL joins base and appPath and re-appends rawQuery verbatim.
func BuildTargetURL(base, appPath, rawQuery string) string {
	target := base
	if appPath != "" {
		if appPath[0] != '/' {
			appPath = "/" + appPath
		}
		target = strings.TrimSuffix(base, "/") + appPath
	}
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}

// FilterRequestHeaders copies src without the named headers.
func FilterRequestHeaders(src http.Header, drop []string) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}
	for _, key := range drop {
		dst.Del(key)
	}
	return dst
}

// FilterResponseHeaders copies upstream headers except X-* and the
// transfer-level encoding headers.
func FilterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		if strings.HasPrefix(strings.ToLower(key), "x-") {
			continue
		}
		if droppedResponseHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		dst[key] = slices.Clone(vals)
	}
	return dst
}

// IsJSONContentType reports whether a Content-Type value declares JSON.
func IsJSONContentType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "application/json")
}

// ApplyCORS sets the CORS headers carried by every proxy response.
func ApplyCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Credentials", "true")
}

func preflightResponse() *model.ProxyResponse {
	h := make(http.Header)
	ApplyCORS(h)
	h.Set("Access-Control-Allow-Methods", preflightAllowMethods)
	h.Set("Access-Control-Allow-Headers", preflightAllowHeaders)
	return &model.ProxyResponse{StatusCode: http.StatusOK, Header: h}
}

func errorResponse(status int, body model.ErrorBody) *model.ProxyResponse {
	data, _ := json.Marshal(body)
	return &model.ProxyResponse{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       data,
		JSON:       true,
	}
}
