package core

import (
	"fmt"
	"strings"
	"time"
)

// ErrorKind identifies the failure taxonomy surfaced to callers.
type ErrorKind string

const (
	ErrorKindConfig    ErrorKind = "config"
	ErrorKindRateLimit ErrorKind = "rate_limit"
	ErrorKindParse     ErrorKind = "parse"
	ErrorKindUpstream  ErrorKind = "upstream"
	ErrorKindUnknown   ErrorKind = "unknown"
)

// Classification is the normalized description of why an attempt failed.
type Classification struct {
	Kind       ErrorKind `json:"kind"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
}

// RetryAttempt records one failed attempt within a single fetch call. Attempt
// counts from zero. RetryAfter is the upstream's Retry-After hint, when sent.
type RetryAttempt struct {
	Attempt    int            `json:"attempt"`
	Cause      Classification `json:"cause"`
	RetryAfter time.Duration  `json:"retry_after,omitempty"`
}

// AdmissionWindow is the fixed-window request counter state.
type AdmissionWindow struct {
	WindowStart  time.Time `json:"window_start"`
	RequestCount int       `json:"request_count"`
}

// Expired reports whether the window has run its full length at now. A window
// with requests but no start time is treated as expired.
func (w AdmissionWindow) Expired(length time.Duration, now time.Time) bool {
	if w.WindowStart.IsZero() {
		return w.RequestCount != 0
	}
	return now.Sub(w.WindowStart) >= length
}

// Remaining returns how long until the window ends, clamped to [0, length].
func (w AdmissionWindow) Remaining(length time.Duration, now time.Time) time.Duration {
	if w.WindowStart.IsZero() {
		return 0
	}
	wait := length - now.Sub(w.WindowStart)
	switch {
	case wait < 0:
		return 0
	case wait > length:
		return length
	}
	return wait
}

// Comment is a single top-level comment mapped from a validated payload.
type Comment struct {
	Text          string `json:"text"`
	Author        string `json:"author"`
	AuthorImage   string `json:"author_image,omitempty"`
	AuthorChannel string `json:"author_channel,omitempty"`
	Likes         int64  `json:"likes"`
	PublishedDate string `json:"published_date"`
}

// Page is one batch of comments plus the cursor for the next batch.
// An empty NextCursor marks the end of pagination.
type Page struct {
	Comments     []Comment `json:"comments"`
	NextCursor   string    `json:"next_cursor,omitempty"`
	TotalResults int64     `json:"total_results"`
}

// DefaultMaxResults is used when FetchOptions.MaxResults is unset.
const DefaultMaxResults = 20

// FetchOptions are caller-supplied pagination options.
type FetchOptions struct {
	MaxResults int
	PageCursor string
}

// Validate rejects non-positive explicit page sizes. Zero means "use the default".
func (o FetchOptions) Validate() error {
	if o.MaxResults < 0 {
		return fmt.Errorf("maxResults must be positive, got %d", o.MaxResults)
	}
	return nil
}

// EffectiveMaxResults returns the page size to request upstream.
func (o FetchOptions) EffectiveMaxResults() int {
	if o.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return o.MaxResults
}

// FetchError is the single typed failure returned by fetchers.
type FetchError struct {
	Message    string    `json:"message"`
	Kind       ErrorKind `json:"kind"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Attempts   int       `json:"attempts"`
	// History lists every failed outbound attempt in order, the last one
	// included. It is empty when the call failed before reaching upstream.
	History []RetryAttempt `json:"history,omitempty"`
	Err     error          `json:"-"`
}

func (e *FetchError) Error() string {
	if e == nil {
		return ""
	}
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Kind, e.HTTPStatus)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Classification returns the taxonomy view of the error.
func (e *FetchError) Classification() Classification {
	return Classification{Kind: e.Kind, HTTPStatus: e.HTTPStatus, Retryable: e.Retryable}
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Message)
}

// ConfigError reports missing or invalid configuration, including caller options.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationError lists every field that failed payload validation.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid response format"
	}
	return "invalid response format: " + strings.Join(e.Problems, "; ")
}
