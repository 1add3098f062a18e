package engine

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/insightdeck/insightdeck/internal/core"
)

const (
	// DefaultBaseDelay is the linear backoff step.
	DefaultBaseDelay = 2 * time.Second
	// DefaultMaxAttempts is the number of retries after the first attempt.
	DefaultMaxAttempts = 3
)

// RetryPolicy decides whether a failed attempt is retried and how long to wait.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy returns the 2s linear, 3 retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{BaseDelay: DefaultBaseDelay, MaxAttempts: DefaultMaxAttempts}
}

// Classify maps a failure onto the error taxonomy.
func (p RetryPolicy) Classify(err error) core.Classification {
	return Classify(err)
}

// BackoffDelay returns BaseDelay * (attempt + 1). No jitter and no cap.
func (p RetryPolicy) BackoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.baseDelay() * time.Duration(attempt+1)
}

// ShouldRetry reports whether another attempt follows the given zero-based attempt.
func (p RetryPolicy) ShouldRetry(c core.Classification, attempt int) bool {
	return c.Retryable && attempt < p.maxAttempts()
}

// Attempts returns the retry ceiling in effect.
func (p RetryPolicy) Attempts() int {
	return p.maxAttempts()
}

func (p RetryPolicy) baseDelay() time.Duration {
	if p.BaseDelay <= 0 {
		return DefaultBaseDelay
	}
	return p.BaseDelay
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts < 0 {
		return 0
	}
	return p.MaxAttempts
}

// Classify maps a failure onto the error taxonomy.
func Classify(err error) core.Classification {
	if err == nil {
		return core.Classification{Kind: core.ErrorKindUnknown}
	}

	var fetchErr *core.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Classification()
	}

	var configErr *core.ConfigError
	if errors.As(err, &configErr) {
		return core.Classification{Kind: core.ErrorKindConfig}
	}

	var validationErr *core.ValidationError
	if errors.As(err, &validationErr) {
		return core.Classification{Kind: core.ErrorKindParse}
	}

	var statusErr *core.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return core.Classification{Kind: core.ErrorKindRateLimit, HTTPStatus: statusErr.StatusCode, Retryable: true}
		case http.StatusInternalServerError, http.StatusServiceUnavailable:
			return core.Classification{Kind: core.ErrorKindUpstream, HTTPStatus: statusErr.StatusCode, Retryable: true}
		default:
			return core.Classification{Kind: core.ErrorKindUnknown, HTTPStatus: statusErr.StatusCode}
		}
	}

	if isTimeout(err) {
		return core.Classification{Kind: core.ErrorKindUpstream, Retryable: true}
	}

	return core.Classification{Kind: core.ErrorKindUnknown}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
