package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/insightdeck/insightdeck/internal/metrics"
	"github.com/insightdeck/insightdeck/internal/observability"
)

// panicBody mirrors the API error body. internal/errors imports this
// package, so the shape is repeated here.
type panicBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

// Recovery turns a panic into a 500 INTERNAL_ERROR response. The panic value
// and stack go to the server log only.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			requestID := GetRequestID(r.Context())
			envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", "internal server error").
				WithCorrelationID(requestID)
			if critical, err := envelope.WithSeverity(errors.SeverityCritical); err == nil {
				envelope = critical
			}

			if logger := observability.ServerLogger; logger != nil {
				logger.Error("Recovered from panic",
					zap.String("panic", fmt.Sprint(recovered)),
					zap.String("request_id", requestID),
					zap.String("path", r.URL.Path),
					zap.String("severity", string(envelope.Severity)),
					zap.ByteString("stack_trace", debug.Stack()))
			}
			metrics.RecordPanic()

			var body panicBody
			body.Error.Code = envelope.Code
			body.Error.Message = envelope.Message
			body.Error.RequestID = envelope.CorrelationID

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(body)
		}()

		next.ServeHTTP(w, r)
	})
}
