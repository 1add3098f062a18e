package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/insightdeck/insightdeck/internal/core"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want core.Classification
	}{
		{"rate limited", &core.StatusError{StatusCode: http.StatusTooManyRequests}, core.Classification{Kind: core.ErrorKindRateLimit, HTTPStatus: 429, Retryable: true}},
		{"server error", &core.StatusError{StatusCode: http.StatusInternalServerError}, core.Classification{Kind: core.ErrorKindUpstream, HTTPStatus: 500, Retryable: true}},
		{"unavailable", &core.StatusError{StatusCode: http.StatusServiceUnavailable}, core.Classification{Kind: core.ErrorKindUpstream, HTTPStatus: 503, Retryable: true}},
		{"bad gateway", &core.StatusError{StatusCode: http.StatusBadGateway}, core.Classification{Kind: core.ErrorKindUnknown, HTTPStatus: 502}},
		{"forbidden", &core.StatusError{StatusCode: http.StatusForbidden}, core.Classification{Kind: core.ErrorKindUnknown, HTTPStatus: 403}},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), core.Classification{Kind: core.ErrorKindUpstream, Retryable: true}},
		{"net timeout", timeoutErr{}, core.Classification{Kind: core.ErrorKindUpstream, Retryable: true}},
		{"validation", &core.ValidationError{Problems: []string{"items: expected array"}}, core.Classification{Kind: core.ErrorKindParse}},
		{"config", &core.ConfigError{Field: "api_key", Message: "missing"}, core.Classification{Kind: core.ErrorKindConfig}},
		{"cancelled", context.Canceled, core.Classification{Kind: core.ErrorKindUnknown}},
		{"other", errors.New("connection reset"), core.Classification{Kind: core.ErrorKindUnknown}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestBackoffDelayIsLinear(t *testing.T) {
	policy := DefaultRetryPolicy()

	require.Equal(t, 2*time.Second, policy.BackoffDelay(0))
	require.Equal(t, 4*time.Second, policy.BackoffDelay(1))
	require.Equal(t, 6*time.Second, policy.BackoffDelay(2))

	prev := time.Duration(0)
	for attempt := 0; attempt < 10; attempt++ {
		delay := policy.BackoffDelay(attempt)
		require.Greater(t, delay, prev)
		prev = delay
	}
}

func TestShouldRetry(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second, MaxAttempts: 3}
	retryable := core.Classification{Kind: core.ErrorKindRateLimit, Retryable: true}

	require.True(t, policy.ShouldRetry(retryable, 0))
	require.True(t, policy.ShouldRetry(retryable, 2))
	require.False(t, policy.ShouldRetry(retryable, 3))
	require.False(t, policy.ShouldRetry(core.Classification{Kind: core.ErrorKindParse}, 0))
}

func TestStatusFromResponse(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"30"}},
		Body:       io.NopCloser(strings.NewReader(`{"message":"You have exceeded the rate limit per minute"}`)),
	}

	statusErr := StatusFromResponse(resp)
	require.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	require.Equal(t, "You have exceeded the rate limit per minute", statusErr.Message)
	require.Equal(t, 30*time.Second, statusErr.RetryAfter)
}

func TestStatusFromResponseNonJSONBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusServiceUnavailable,
		Body:       io.NopCloser(strings.NewReader("upstream down")),
	}

	statusErr := StatusFromResponse(resp)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	require.Empty(t, statusErr.Message)
}

func TestStatusFromResponseNestedError(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusUnauthorized,
		Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`)),
	}

	statusErr := StatusFromResponse(resp)
	require.Equal(t, "Invalid API Key", statusErr.Message)
}

func TestRetryAfter(t *testing.T) {
	wrapped := fmt.Errorf("attempt: %w", &core.StatusError{StatusCode: http.StatusTooManyRequests, RetryAfter: 5 * time.Second})
	require.Equal(t, 5*time.Second, RetryAfter(wrapped))
	require.Zero(t, RetryAfter(&core.StatusError{StatusCode: http.StatusServiceUnavailable}))
	require.Zero(t, RetryAfter(errors.New("plain")))
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
