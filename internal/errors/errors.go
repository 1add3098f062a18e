// Package errors maps domain failures onto gofulmen error envelopes and the
// JSON error body returned by the HTTP API.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insightdeck/insightdeck/internal/core"
	"github.com/insightdeck/insightdeck/internal/metrics"
	"github.com/insightdeck/insightdeck/internal/observability"
	"github.com/insightdeck/insightdeck/internal/server/middleware"
)

// Error codes used across the API.
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeExternalService  = "EXTERNAL_SERVICE_ERROR"
	CodeDataProcessing   = "DATA_PROCESSING_ERROR"
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
)

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

func NewUnavailableError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeUnavailable, message)
}

func WrapInvalidInput(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeInvalidInput, err, message)
}

func WrapNotFound(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeNotFound, err, message)
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeInternal, err, message)
}

func WrapUnavailable(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeUnavailable, err, message)
}

// FromFetchError converts an upstream fetch failure into an envelope whose code
// reflects the failure kind. Details carry the classification so API callers
// can decide whether to retry later.
func FromFetchError(ctx context.Context, fetchErr *core.FetchError) *errors.ErrorEnvelope {
	if fetchErr == nil {
		return WrapInternal(ctx, nil, "unexpected nil fetch error")
	}

	envelope := wrap(ctx, codeForKind(fetchErr.Kind), fetchErr.Err, fetchErr.Message)

	details := map[string]interface{}{
		"kind":      string(fetchErr.Kind),
		"retryable": fetchErr.Retryable,
		"attempts":  fetchErr.Attempts,
	}
	if fetchErr.HTTPStatus != 0 {
		details["http_status"] = fetchErr.HTTPStatus
	}
	if len(fetchErr.History) > 0 {
		details["history"] = historyDetails(fetchErr.History)
	}
	envelope = envelope.WithDetails(details)

	severity := errors.SeverityMedium
	if fetchErr.Kind == core.ErrorKindUnknown || fetchErr.Kind == core.ErrorKindConfig {
		severity = errors.SeverityHigh
	}
	if updated, err := envelope.WithSeverity(severity); err == nil {
		envelope = updated
	}
	return envelope
}

// FromError normalizes any error returned by the fetchers. notFound marks
// sentinel errors that should surface as NOT_FOUND instead of their kind.
func FromError(ctx context.Context, err error, notFound ...error) *errors.ErrorEnvelope {
	for _, target := range notFound {
		if target != nil && stderrors.Is(err, target) {
			return WrapNotFound(ctx, nil, err.Error())
		}
	}

	var fetchErr *core.FetchError
	if stderrors.As(err, &fetchErr) {
		return FromFetchError(ctx, fetchErr)
	}
	return WrapInternal(ctx, err, "unexpected error")
}

func historyDetails(history []core.RetryAttempt) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(history))
	for _, attempt := range history {
		entry := map[string]interface{}{
			"attempt": attempt.Attempt,
			"kind":    string(attempt.Cause.Kind),
		}
		if attempt.Cause.HTTPStatus != 0 {
			entry["http_status"] = attempt.Cause.HTTPStatus
		}
		if attempt.RetryAfter > 0 {
			entry["retry_after_ms"] = attempt.RetryAfter.Milliseconds()
		}
		out = append(out, entry)
	}
	return out
}

func codeForKind(kind core.ErrorKind) string {
	switch kind {
	case core.ErrorKindConfig:
		return CodeConfigInvalid
	case core.ErrorKindRateLimit:
		return CodeRateLimited
	case core.ErrorKindParse:
		return CodeDataProcessing
	case core.ErrorKindUpstream:
		return CodeExternalService
	default:
		return CodeInternal
	}
}

// wrap builds an envelope for code. A nil ctx leaves the IDs for
// RespondWithEnvelope to fill in when the response is written.
func wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message)
	if ctx != nil {
		correlationID := extractCorrelationID(ctx)
		envelope = envelope.WithCorrelationID(correlationID)
		envelope = envelope.WithTraceID(correlationID)
	}
	return withWrappedError(envelope, err)
}

// extractCorrelationID gets correlation ID from context, falls back to generating new UUID
func extractCorrelationID(ctx context.Context) string {
	if ctx != nil {
		if requestID := middleware.GetRequestID(ctx); requestID != "" {
			return requestID
		}
	}
	return uuid.New().String()
}

// EnsureEnvelope normalizes any error into a gofulmen ErrorEnvelope.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return envelope
	}

	var fetchErr *core.FetchError
	if stderrors.As(err, &fetchErr) {
		return FromFetchError(nil, fetchErr)
	}

	env := errors.NewErrorEnvelope(CodeInternal, "unexpected error")
	env, _ = env.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// statusByCode maps API error codes to HTTP statuses. Unknown codes are 500.
var statusByCode = map[string]int{
	CodeInvalidInput:     http.StatusBadRequest,
	CodeNotFound:         http.StatusNotFound,
	CodeMethodNotAllowed: http.StatusMethodNotAllowed,
	CodeRateLimited:      http.StatusTooManyRequests,
	CodeExternalService:  http.StatusBadGateway,
	CodeDataProcessing:   http.StatusBadGateway,
	CodeUnavailable:      http.StatusServiceUnavailable,
	CodeConfigInvalid:    http.StatusInternalServerError,
	CodeInternal:         http.StatusInternalServerError,
}

// HTTPStatusFromCode resolves the HTTP status for an error code.
func HTTPStatusFromCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HTTPStatusFromEnvelope resolves the HTTP status for an envelope.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

func withWrappedError(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}
	if updated, ctxErr := envelope.WithContext(map[string]interface{}{"wrapped_error": err.Error()}); ctxErr == nil {
		return updated
	}
	return envelope
}

// HTTPErrorResponse is the JSON body of every API error.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// HTTPErrorDetail carries the caller-facing part of an envelope. Envelope
// context stays in the server log; it may hold wrapped upstream errors.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

func newHTTPErrorResponse(envelope *errors.ErrorEnvelope) HTTPErrorResponse {
	detail := HTTPErrorDetail{
		Code:      envelope.Code,
		Message:   envelope.Message,
		RequestID: envelope.CorrelationID,
	}
	if len(envelope.Details) > 0 {
		detail.Details = make(map[string]interface{}, len(envelope.Details))
		for key, value := range envelope.Details {
			detail.Details[key] = value
		}
	}
	return HTTPErrorResponse{Error: detail}
}

// RespondWithError normalizes err and writes it as a JSON error response.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithEnvelope(w, r, EnsureEnvelope(err))
}

// RespondWithEnvelope writes envelope with the status its code maps to. The
// request ID becomes the correlation ID when the envelope has none.
func RespondWithEnvelope(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	if w == nil {
		return
	}
	if envelope == nil {
		envelope = EnsureEnvelope(nil)
	}

	var ctx context.Context
	if r != nil {
		ctx = r.Context()
	}
	if envelope.CorrelationID == "" {
		correlationID := ""
		if ctx != nil {
			correlationID = middleware.GetRequestID(ctx)
		}
		if correlationID == "" {
			correlationID = "fallback-" + errors.GenerateCorrelationID()
		}
		envelope = envelope.WithCorrelationID(correlationID)
	}

	status := HTTPStatusFromEnvelope(envelope)
	logHTTPError(envelope, status)

	metrics.RecordError(envelope.Code, status)
	if r != nil {
		metrics.RecordErrorByEndpoint(middleware.EndpointLabel(r), envelope.Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(newHTTPErrorResponse(envelope))
}

func logHTTPError(envelope *errors.ErrorEnvelope, status int) {
	logger := observability.ServerLogger
	if logger == nil {
		return
	}

	fields := make([]zap.Field, 0, 4+len(envelope.Context))
	fields = append(fields,
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", status),
		zap.String("request_id", envelope.CorrelationID),
	)
	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}
	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	log := logger.Info
	switch envelope.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		log = logger.Error
	case errors.SeverityMedium:
		log = logger.Warn
	}
	log(envelope.Message, fields...)
}
