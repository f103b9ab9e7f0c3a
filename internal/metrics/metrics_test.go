package metrics

import (
	"testing"
)

func TestNew_GathersMetrics(t *testing.T) {
	m := New("/api/proxy")

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	// Go runtime and process collectors are always present.
	if len(families) == 0 {
		t.Fatal("expected non-empty metric families from Gather()")
	}

	m.RequestsTotal.WithLabelValues("GET", "200", "/api/proxy").Inc()

	families, err = m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "ngrok_proxy_http_requests_total" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected ngrok_proxy_http_requests_total in gathered metrics")
	}
}

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"GET", "GET"},
		{"POST", "POST"},
		{"PUT", "PUT"},
		{"DELETE", "DELETE"},
		{"PATCH", "PATCH"},
		{"HEAD", "HEAD"},
		{"OPTIONS", "OPTIONS"},
		{"FOOBAR", "other"},
		{"get", "other"},
		{"", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got := NormalizeMethod(tt.method)
			if got != tt.want {
				t.Errorf("NormalizeMethod(%q) = %q, want %q", tt.method, got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	m := New("/relay")

	tests := []struct {
		path string
		want string
	}{
		{"/relay/widgets", "/relay"},
		{"/relay", "/relay"},
		{"/relay?x=1", "/relay"},
		{"/relayed", "other"},
		{"/api/proxy/widgets", "other"},
		{"/healthz", "/healthz"},
		{"/proxy/status", "/proxy/status"},
		{"/metrics", "/metrics"},
		{"/", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := m.NormalizePath(tt.path)
			if got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestObserveOutcome(t *testing.T) {
	var nilMetrics *Metrics
	nilMetrics.ObserveOutcome(OutcomeForwarded) // must not panic

	m := New("/api/proxy")
	m.ObserveOutcome(OutcomeConfigError)
	m.ObserveOutcome(OutcomeConfigError)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "ngrok_proxy_forward_outcomes_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == OutcomeConfigError {
					if v := metric.GetCounter().GetValue(); v != 2 {
						t.Errorf("counter value = %v, want 2", v)
					}
					return
				}
			}
		}
	}
	t.Error("expected ngrok_proxy_forward_outcomes_total with outcome=config_error")
}
