package engine

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/insightdeck/insightdeck/internal/core"
)

const maxErrorBody = 64 << 10

// StatusFromResponse builds a StatusError for a non-2xx response, taking the
// message from the JSON body's "message" or "error.message" field when one is
// present.
func StatusFromResponse(resp *http.Response) *core.StatusError {
	if resp == nil {
		return &core.StatusError{}
	}

	statusErr := &core.StatusError{StatusCode: resp.StatusCode}
	statusErr.RetryAfter = retryAfterHeader(resp)

	if resp.Body == nil {
		return statusErr
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return statusErr
	}

	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return statusErr
	}
	statusErr.Message = strings.TrimSpace(payload.Message)
	if statusErr.Message == "" && len(payload.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err == nil {
			statusErr.Message = strings.TrimSpace(nested.Message)
		}
	}
	return statusErr
}

// RetryAfter returns the Retry-After hint carried by a StatusError in err's chain.
func RetryAfter(err error) time.Duration {
	var statusErr *core.StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return statusErr.RetryAfter
	}
	return 0
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if retry == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}
	return 0
}
