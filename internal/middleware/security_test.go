package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders_AddsHeaders(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	res := rec.Result()
	defer func() { _ = res.Body.Close() }()
	if v := res.Header.Get("X-Content-Type-Options"); v != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", v, "nosniff")
	}
	if v := res.Header.Get("X-Frame-Options"); v != "DENY" {
		t.Errorf("X-Frame-Options = %q, want %q", v, "DENY")
	}
}

func TestSecurityHeaders_StripsHopByHop(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())

	var got http.Header
	e.GET("/test", func(c echo.Context) error {
		got = c.Request().Header.Clone()
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Connection", "keep-alive, X-Session-Hint")
	req.Header.Set("X-Session-Hint", "abc")
	req.Header.Set("Proxy-Authorization", "Basic abc")
	req.Header.Set("Authorization", "Bearer t")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	for _, k := range []string{"Connection", "X-Session-Hint", "Proxy-Authorization"} {
		if v := got.Get(k); v != "" {
			t.Errorf("%s should be stripped, got %q", k, v)
		}
	}
	if got.Get("Authorization") != "Bearer t" {
		t.Error("Authorization should be kept")
	}
}
