package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"ngrok-proxy-go/internal/config"
)

func TestHealthz(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewHealthHandler(&config.Config{}, "test")
	if err := h.Healthz(c); err != nil {
		t.Fatalf("Healthz() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name           string
		baseURL        string
		wantStatus     string
		wantConfigured bool
	}{
		{"configured", "https://abc123.ngrok.io", "ok", true},
		{"placeholder", config.PlaceholderBaseURL, "unconfigured", false},
		{"empty", "", "unconfigured", false},
		{"malformed", "abc123.ngrok.io", "unconfigured", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/proxy/status", http.NoBody)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			cfg := &config.Config{
				Upstream: config.UpstreamConfig{BaseURL: tt.baseURL},
				Proxy:    config.ProxyConfig{Prefix: "/api/proxy"},
			}
			h := NewHealthHandler(cfg, "1.2.3")
			if err := h.Status(c); err != nil {
				t.Fatalf("Status() error = %v", err)
			}

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}

			var body struct {
				Status      string `json:"status"`
				Version     string `json:"version"`
				UpstreamURL string `json:"upstream_url"`
				Configured  bool   `json:"configured"`
				Prefix      string `json:"prefix"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("body.status = %q, want %q", body.Status, tt.wantStatus)
			}
			if body.Configured != tt.wantConfigured {
				t.Errorf("body.configured = %v, want %v", body.Configured, tt.wantConfigured)
			}
			if body.Version != "1.2.3" {
				t.Errorf("body.version = %q, want %q", body.Version, "1.2.3")
			}
			if body.UpstreamURL != tt.baseURL {
				t.Errorf("body.upstream_url = %q, want %q", body.UpstreamURL, tt.baseURL)
			}
			if body.Prefix != "/api/proxy" {
				t.Errorf("body.prefix = %q, want %q", body.Prefix, "/api/proxy")
			}
		})
	}
}
