package handlers

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/insightdeck/insightdeck/internal/errors"
	"github.com/insightdeck/insightdeck/internal/metrics"
)

// HealthResponse represents the aggregate health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse represents individual probe response
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker defines interface for health checkable components
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// HealthManager manages health checks and probe states
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
}

// NewHealthManager creates a new health manager
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
	}
}

// RegisterChecker registers a health checker
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// Check results and aggregate statuses.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
	statusTimeout   = "timeout"
)

// runChecks runs every registered checker in name order. Checkers that
// are not reached before ctx ends are reported as timeout.
func (hm *HealthManager) runChecks(ctx context.Context) map[string]string {
	hm.mu.RLock()
	snapshot := maps.Clone(hm.checkers)
	hm.mu.RUnlock()

	results := make(map[string]string, len(snapshot))
	for _, name := range slices.Sorted(maps.Keys(snapshot)) {
		if ctx.Err() != nil {
			results[name] = statusTimeout
			continue
		}

		start := time.Now()
		err := snapshot[name].CheckHealth(ctx)
		metrics.RecordHealthCheck(name, err == nil, time.Since(start))
		results[name] = statusHealthy
		if err != nil {
			results[name] = statusUnhealthy
		}
	}
	return results
}

// aggregate folds check results: any unhealthy check wins, then timeouts
// degrade the service.
func aggregate(results map[string]string) string {
	overall := statusHealthy
	for _, result := range results {
		switch result {
		case statusUnhealthy:
			return statusUnhealthy
		case statusTimeout, statusDegraded:
			overall = statusDegraded
		}
	}
	return overall
}

// evaluate runs the checks under timeout. On failure it writes the 503
// error response itself and reports false.
func (hm *HealthManager) evaluate(w http.ResponseWriter, r *http.Request, probe string, timeout time.Duration) (string, map[string]string, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	results := hm.runChecks(ctx)
	status := aggregate(results)
	if status != statusUnhealthy {
		return status, results, true
	}

	message := "aggregate health check failed"
	details := map[string]interface{}{"status": status, "checks": results}
	if probe != "" {
		message = probe + " probe failed"
		details["probe"] = probe
	}
	envelope := errors.NewErrorEnvelope(apperrors.CodeUnavailable, message).WithDetails(details)

	var failing []string
	for _, name := range slices.Sorted(maps.Keys(results)) {
		if results[name] != statusHealthy {
			failing = append(failing, name)
		}
	}
	if withCtx, err := envelope.WithContext(map[string]interface{}{"unhealthy_checks": failing}); err == nil {
		envelope = withCtx
	}

	apperrors.RespondWithError(w, r, envelope)
	return status, results, false
}

// HealthHandler serves the aggregate report with per-check results.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status, results, ok := hm.evaluate(w, r, "", 5*time.Second)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   hm.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    results,
	})
}

// LivenessHandler reports whether the process is running. It runs no checks:
// a slow store must not get the process restarted.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProbeResponse{Status: statusHealthy, Timestamp: time.Now().UTC()})
}

// ReadinessHandler fails while any dependency check fails.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if status, _, ok := hm.evaluate(w, r, "ready", 5*time.Second); ok {
		writeJSON(w, http.StatusOK, ProbeResponse{Status: status, Timestamp: time.Now().UTC()})
	}
}

// StartupHandler uses a shorter budget than readiness.
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	if status, _, ok := hm.evaluate(w, r, "startup", 3*time.Second); ok {
		writeJSON(w, http.StatusOK, ProbeResponse{Status: status, Timestamp: time.Now().UTC()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
