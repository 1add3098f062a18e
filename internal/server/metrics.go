package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/insightdeck/insightdeck/internal/config"
	apperrors "github.com/insightdeck/insightdeck/internal/errors"
	"github.com/insightdeck/insightdeck/internal/observability"
)

// metricsProxy serves the exporter's scrape output on the API port.
type metricsProxy struct {
	client *http.Client
	target func() string
}

var defaultMetricsProxy = &metricsProxy{
	client: &http.Client{Timeout: 5 * time.Second},
	target: exporterURL,
}

// hopByHopHeaders are dropped when copying the exporter response.
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// MetricsHandler serves GET /metrics by proxying the Prometheus exporter.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	defaultMetricsProxy.ServeHTTP(w, r)
}

func exporterURL() string {
	port := observability.GetMetricsPort()
	if port == 0 {
		port = 9090
		if cfg := config.GetConfig(); cfg != nil && cfg.Metrics.Port > 0 {
			port = cfg.Metrics.Port
		}
	}
	return fmt.Sprintf("http://127.0.0.1:%d/metrics", port)
}

func (p *metricsProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if observability.PrometheusExporter == nil {
		apperrors.RespondWithError(w, r, apperrors.NewUnavailableError("Metrics exporter not initialized"))
		return
	}

	target := p.target()
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "Unable to construct metrics request"))
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapUnavailable(r.Context(), err, "Prometheus exporter unavailable"))
		return
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	header := resp.Header.Clone()
	for _, name := range hopByHopHeaders {
		header.Del(name)
	}
	for key, values := range header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to write metrics response", zap.Error(err))
	}
}
