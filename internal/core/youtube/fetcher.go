package youtube

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insightdeck/insightdeck/internal/core"
	"github.com/insightdeck/insightdeck/internal/core/engine"
	"github.com/insightdeck/insightdeck/internal/metrics"
)

const (
	// DefaultBaseURL is the comments API origin.
	DefaultBaseURL = "https://youtube-api-full.p.rapidapi.com"
	// DefaultHost is sent as the x-rapidapi-host header.
	DefaultHost = "youtube-api-full.p.rapidapi.com"
	// DefaultTimeout bounds a single outbound attempt.
	DefaultTimeout = 10 * time.Second

	commentsPath = "/video/comments"
	source       = "youtube"
	maxBodyBytes = 8 << 20
)

// CommentFetcher fetches pages of top-level video comments.
//
// A nil Limiter disables admission control. NewCommentFetcher installs the default
// 5 per minute window.
type CommentFetcher struct {
	APIKey  string
	Host    string
	BaseURL string
	Client  *http.Client
	Limiter *engine.AdmissionLimiter
	Policy  engine.RetryPolicy
	Timeout time.Duration
	Sleep   func(ctx context.Context, d time.Duration) error
	Logger  *logging.Logger
}

// NewCommentFetcher returns a fetcher with the default limiter, retry policy and timeout.
func NewCommentFetcher(apiKey string) *CommentFetcher {
	return &CommentFetcher{
		APIKey:  apiKey,
		Limiter: engine.NewAdmissionLimiter(nil, DefaultHost, engine.DefaultAdmissionRequests, engine.DefaultAdmissionWindow),
		Policy:  engine.DefaultRetryPolicy(),
		Timeout: DefaultTimeout,
	}
}

// FetchPage fetches one page of comments for a video. Failures are always
// returned as *core.FetchError.
func (f *CommentFetcher) FetchPage(ctx context.Context, videoID string, opts core.FetchOptions) (*core.Page, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if f == nil {
		return nil, f.fail(&core.ConfigError{Field: "fetcher", Message: "comment fetcher is not configured"}, core.Classification{Kind: core.ErrorKindConfig}, 0, nil)
	}

	if strings.TrimSpace(f.APIKey) == "" {
		return nil, f.fail(&core.ConfigError{Field: "youtube.api_key", Message: "API key is not configured"}, core.Classification{Kind: core.ErrorKindConfig}, 0, nil)
	}
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, f.fail(&core.ConfigError{Field: "id", Message: "video id is required"}, core.Classification{Kind: core.ErrorKindConfig}, 0, nil)
	}
	if err := opts.Validate(); err != nil {
		return nil, f.fail(&core.ConfigError{Field: "maxResults", Message: err.Error()}, core.Classification{Kind: core.ErrorKindConfig}, 0, nil)
	}

	endpoint := f.endpoint(videoID, opts)
	policy := f.policy()
	fetchID := uuid.NewString()
	attempts := 0
	var history []core.RetryAttempt

	for attempt := 0; ; attempt++ {
		waited, err := f.Limiter.Acquire(ctx)
		if err != nil {
			return nil, f.fail(err, core.Classification{Kind: core.ErrorKindUnknown}, attempts, history)
		}
		if waited > 0 {
			metrics.RecordAdmissionWait(source, waited)
			f.debug("Admission window full, waited before request",
				zap.String("fetch_id", fetchID),
				zap.Duration("waited", waited))
		}

		attempts++
		page, err := f.do(ctx, endpoint)
		if err == nil {
			metrics.RecordUpstreamAttempt(source, "success")
			return page, nil
		}

		classification := f.classify(ctx, err)
		metrics.RecordUpstreamAttempt(source, string(classification.Kind))
		history = append(history, core.RetryAttempt{
			Attempt:    attempt,
			Cause:      classification,
			RetryAfter: engine.RetryAfter(err),
		})

		if !policy.ShouldRetry(classification, attempt) {
			return nil, f.fail(err, classification, attempts, history)
		}

		delay := policy.BackoffDelay(attempt)
		metrics.RecordUpstreamRetry(source, string(classification.Kind))
		f.debug("Retrying comments request",
			zap.String("fetch_id", fetchID),
			zap.String("video_id", videoID),
			zap.Int("attempt", attempt),
			zap.String("kind", string(classification.Kind)),
			zap.Int("status", classification.HTTPStatus),
			zap.Duration("retry_after", engine.RetryAfter(err)),
			zap.Duration("backoff", delay))

		if err := f.sleep(ctx, delay); err != nil {
			return nil, f.fail(err, core.Classification{Kind: core.ErrorKindUnknown}, attempts, history)
		}
	}
}

func (f *CommentFetcher) do(ctx context.Context, endpoint string) (*core.Page, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-rapidapi-key", f.APIKey)
	req.Header.Set("x-rapidapi-host", f.host())

	client := f.Client
	if client == nil {
		client = &http.Client{}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, engine.StatusFromResponse(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	validated, err := Validate(body)
	if err != nil {
		return nil, err
	}
	return validated.Page(), nil
}

// classify treats a done parent context as unknown so caller cancellation is never retried.
func (f *CommentFetcher) classify(ctx context.Context, err error) core.Classification {
	if ctx.Err() != nil {
		return core.Classification{Kind: core.ErrorKindUnknown}
	}
	return f.policy().Classify(err)
}

func (f *CommentFetcher) fail(err error, classification core.Classification, attempts int, history []core.RetryAttempt) *core.FetchError {
	fetchErr := &core.FetchError{
		Message:    failureMessage(err, classification),
		Kind:       classification.Kind,
		HTTPStatus: classification.HTTPStatus,
		Retryable:  classification.Retryable,
		Attempts:   attempts,
		History:    history,
		Err:        err,
	}

	metrics.RecordUpstreamFailure(source, string(classification.Kind))
	if f != nil {
		f.warn("Comments request failed",
			zap.String("kind", string(fetchErr.Kind)),
			zap.Int("status", fetchErr.HTTPStatus),
			zap.Bool("retryable", fetchErr.Retryable),
			zap.Int("attempts", attempts),
			zap.Strings("causes", causeKinds(history)),
			zap.Error(err))
	}
	return fetchErr
}

func causeKinds(history []core.RetryAttempt) []string {
	kinds := make([]string, 0, len(history))
	for _, attempt := range history {
		kinds = append(kinds, string(attempt.Cause.Kind))
	}
	return kinds
}

func failureMessage(err error, classification core.Classification) string {
	var statusErr *core.StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message
	}

	switch {
	case classification.Kind == core.ErrorKindRateLimit:
		return "upstream rate limit exceeded"
	case classification.Kind == core.ErrorKindUpstream && classification.HTTPStatus == 0:
		return "upstream request timed out"
	case err != nil:
		return err.Error()
	default:
		return "unknown error"
	}
}

func (f *CommentFetcher) endpoint(videoID string, opts core.FetchOptions) string {
	base := f.baseURL()

	query := url.Values{}
	query.Set("id", videoID)
	query.Set("maxResults", strconv.Itoa(opts.EffectiveMaxResults()))
	if opts.PageCursor != "" {
		query.Set("pageToken", opts.PageCursor)
	}
	query.Set("textFormat", "plainText")

	resolved := base.ResolveReference(&url.URL{Path: strings.TrimRight(base.Path, "/") + commentsPath})
	resolved.RawQuery = query.Encode()
	return resolved.String()
}

func (f *CommentFetcher) baseURL() *url.URL {
	if f != nil && f.BaseURL != "" {
		if parsed, err := url.Parse(f.BaseURL); err == nil {
			return parsed
		}
	}
	parsed, _ := url.Parse(DefaultBaseURL)
	return parsed
}

func (f *CommentFetcher) host() string {
	if f.Host != "" {
		return f.Host
	}
	return DefaultHost
}

func (f *CommentFetcher) policy() engine.RetryPolicy {
	if f.Policy == (engine.RetryPolicy{}) {
		return engine.DefaultRetryPolicy()
	}
	return f.Policy
}

func (f *CommentFetcher) timeout() time.Duration {
	if f.Timeout > 0 {
		return f.Timeout
	}
	return DefaultTimeout
}

func (f *CommentFetcher) sleep(ctx context.Context, d time.Duration) error {
	if f.Sleep != nil {
		return f.Sleep(ctx, d)
	}
	return engine.SleepContext(ctx, d)
}

func (f *CommentFetcher) debug(msg string, fields ...zap.Field) {
	if f.Logger != nil {
		f.Logger.Debug(msg, fields...)
	}
}

func (f *CommentFetcher) warn(msg string, fields ...zap.Field) {
	if f.Logger != nil {
		f.Logger.Warn(msg, fields...)
	}
}
