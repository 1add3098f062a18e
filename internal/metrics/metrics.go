// Package metrics emits the application's counters and histograms through the
// global telemetry system. Every recorder is a no-op until
// observability.InitMetrics has run, so CLI commands can call them freely.
package metrics

import (
	"strconv"
	"time"

	"github.com/insightdeck/insightdeck/internal/observability"
)

// Metric names.
const (
	OperationsTotal     = "app_operations_total"
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"
	ServerStartTime     = "app_server_start_time_seconds"

	ErrorsTotalName      = "errors_total"
	PanicsTotalName      = "panics_total"
	ErrorsByEndpointName = "errors_by_endpoint"

	UpstreamAttemptsTotal = "upstream_attempts_total"
	UpstreamRetriesTotal  = "upstream_retries_total"
	UpstreamFailuresTotal = "upstream_failures_total"
	AdmissionWaitMs       = "admission_wait_ms"
)

func count(name string, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Counter(name, 1, labels)
	}
}

func observe(name string, d time.Duration, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Histogram(name, d, labels)
	}
}

func outcome(ok bool, good, bad string) string {
	if ok {
		return good
	}
	return bad
}

// RecordOperation records the outcome of a CLI command such as "comments" or "playstore".
func RecordOperation(operation string, success bool) {
	count(OperationsTotal, map[string]string{
		"operation": operation,
		"status":    outcome(success, "success", "failure"),
	})
}

// RecordHealthCheck records one health checker run.
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	count(HealthCheckTotal, map[string]string{
		"check":  checkName,
		"status": outcome(healthy, "healthy", "unhealthy"),
	})
	observe(HealthCheckDuration, duration, map[string]string{"check": checkName})
}

// SetServerStartTime records the server start time as a Unix timestamp.
func SetServerStartTime(timestamp int64) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}

// RecordError counts an error response by code and status.
func RecordError(errorCode string, httpStatus int) {
	count(ErrorsTotalName, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordPanic counts a recovered panic.
func RecordPanic() {
	count(PanicsTotalName, nil)
}

// RecordErrorByEndpoint counts an error response by route.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	count(ErrorsByEndpointName, map[string]string{
		"endpoint":   endpoint,
		"error_code": errorCode,
	})
}

// RecordUpstreamAttempt counts one outbound request and its outcome
// ("success" or the error kind).
func RecordUpstreamAttempt(source, result string) {
	count(UpstreamAttemptsTotal, map[string]string{"source": source, "outcome": result})
}

// RecordUpstreamRetry counts a retry scheduled after a retryable failure.
func RecordUpstreamRetry(source, kind string) {
	count(UpstreamRetriesTotal, map[string]string{"source": source, "kind": kind})
}

// RecordUpstreamFailure counts a failure surfaced to the caller.
func RecordUpstreamFailure(source, kind string) {
	count(UpstreamFailuresTotal, map[string]string{"source": source, "kind": kind})
}

// RecordAdmissionWait records time spent blocked on the admission window.
func RecordAdmissionWait(source string, wait time.Duration) {
	if wait <= 0 {
		return
	}
	observe(AdmissionWaitMs, wait, map[string]string{"source": source})
}
