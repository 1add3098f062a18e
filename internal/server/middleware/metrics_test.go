package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdeck/insightdeck/internal/observability"
)

func withCollector(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	previous := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = previous })
	return collector
}

func respondWith(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func TestRequestMetrics(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantErrors bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "bad request", status: http.StatusBadRequest, wantErrors: true},
		{name: "upstream failure", status: http.StatusBadGateway, wantErrors: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := withCollector(t)

			rec := httptest.NewRecorder()
			RequestMetrics(respondWith(tt.status, "payload")).
				ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos/abc/comments", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "payload", rec.Body.String())
			assert.Greater(t, collector.CountMetricsByName("http_requests_total"), 0)
			assert.Greater(t, collector.CountMetricsByName("http_request_duration_ms"), 0)
			assert.Greater(t, collector.CountMetricsByName("http_response_size_bytes"), 0)
			assert.Greater(t, collector.CountMetricsByName("http_request_size_bytes"), 0)
			if tt.wantErrors {
				assert.Greater(t, collector.CountMetricsByName("http_errors_total"), 0)
			} else {
				assert.Zero(t, collector.CountMetricsByName("http_errors_total"))
			}
		})
	}
}

func TestRequestMetrics_TelemetryDisabled(t *testing.T) {
	previous := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = previous })

	rec := httptest.NewRecorder()
	RequestMetrics(respondWith(http.StatusTeapot, "")).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestEndpointLabel(t *testing.T) {
	tests := map[string]string{
		"/health":                             "/health/*",
		"/health/ready":                       "/health/*",
		"/version":                            "/version",
		"/metrics":                            "/metrics",
		"/":                                   "/",
		"/api/v1/playstore/apps":              "/api/v1/playstore/apps",
		"/api/v1/market":                      "/api/v1/market",
		"/api/v1/videos/dQw4w9WgXcQ/comments": "/api/v1/videos/{videoID}/comments",
		"/api/v1/videos/dQw4w9WgXcQ":          "/unknown",
		"/wp-admin":                           "/unknown",
	}

	for path, want := range tests {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, want, EndpointLabel(httptest.NewRequest(http.MethodGet, path, nil)))
		})
	}
}

func TestEndpointLabel_PrefersRoutePattern(t *testing.T) {
	var label string
	r := chi.NewRouter()
	r.Get("/api/v1/videos/{videoID}/comments", func(w http.ResponseWriter, req *http.Request) {
		label = EndpointLabel(req)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/videos/xyz/comments", nil))

	assert.Equal(t, "/api/v1/videos/{videoID}/comments", label)
}

func TestRecovery_HidesPanicDetails(t *testing.T) {
	withCollector(t)

	handler := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("secret failure")
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/playstore/apps", nil)
	req.Header.Set("X-Request-ID", "req-panic")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.NotContains(t, body, "secret failure")
	assert.True(t, strings.Contains(body, `"code":"INTERNAL_ERROR"`))
	assert.Contains(t, body, `"request_id":"req-panic"`)
}
