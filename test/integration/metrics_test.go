package integration

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdeck/insightdeck/internal/config"
	"github.com/insightdeck/insightdeck/internal/observability"
	"github.com/insightdeck/insightdeck/internal/server"
	"github.com/insightdeck/insightdeck/internal/server/handlers"
)

// sandboxDenied reports whether err means the environment forbids opening
// loopback sockets.
func sandboxDenied(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "not permitted")
}

// withMetrics starts the Prometheus exporter on a random port under the
// "test" namespace and tears the global telemetry state down afterwards.
func withMetrics(t *testing.T) {
	t.Helper()

	if err := observability.InitMetrics("test", 0, "test"); err != nil {
		if sandboxDenied(err) {
			t.Skipf("metrics exporter cannot bind: %v", err)
		}
		require.NoError(t, err)
	}
	t.Cleanup(observability.StopMetrics)
}

// newTestServer serves the API on an IPv4 loopback listener. setup may add
// extra routes to the router before it starts.
func newTestServer(t *testing.T, deps server.Dependencies, setup func(*chi.Mux)) (*httptest.Server, *http.Client) {
	t.Helper()

	if deps.Health == nil {
		deps.Health = handlers.NewHealthManager("test")
	}
	srv := server.New(config.ServerConfig{Host: "127.0.0.1"}, deps)
	if mux, ok := srv.Handler().(*chi.Mux); ok && setup != nil {
		setup(mux)
	}

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if sandboxDenied(err) {
			t.Skipf("loopback listener unavailable: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{Listener: listener, Config: &http.Server{Handler: srv.Handler()}}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, ts.Client()
}

func scrape(t *testing.T, client *http.Client, baseURL string) (int, string, string) {
	t.Helper()

	resp, err := client.Get(baseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck // test cleanup

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get("Content-Type"), string(body)
}

func TestMetricsEndpoint_ExposesUpstreamActivity(t *testing.T) {
	withMetrics(t)

	var hits int32
	ts, client, _, _ := newCommentsAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(commentPayload))
	}))

	for i := 0; i < 3; i++ {
		resp, err := client.Get(ts.URL + "/api/v1/videos/dQw4w9WgXcQ/comments")
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, err := client.Get(ts.URL + "/api/v1/videos/dQw4w9WgXcQ/comments?maxResults=-1")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	status, contentType, body := scrape(t, client, ts.URL)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.HasPrefix(contentType, "text/plain; version=0.0.4"), "content type %q", contentType)

	for _, name := range []string{
		"test_http_requests_total",
		"test_http_request_duration_ms",
		"test_upstream_attempts_total",
		"test_upstream_retries_total",
	} {
		assert.Contains(t, body, name)
	}
	assert.Contains(t, body, `endpoint="/api/v1/videos/{videoID}/comments"`)
	assert.NotContains(t, body, "dQw4w9WgXcQ", "video IDs must not become label values")
}

func TestMetricsEndpoint_UnavailableWithoutExporter(t *testing.T) {
	observability.InitServerLogger("test", "error")
	observability.StopMetrics()

	ts, client := newTestServer(t, server.Dependencies{}, nil)

	resp, err := client.Get(ts.URL + "/health/live")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, _, body := scrape(t, client, ts.URL)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "SERVICE_UNAVAILABLE")
}
