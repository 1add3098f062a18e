package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/insightdeck/insightdeck/internal/core"
	"github.com/insightdeck/insightdeck/internal/core/engine"
	"github.com/insightdeck/insightdeck/internal/metrics"
)

const (
	// DefaultBaseURL is Groq's OpenAI-compatible API root.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is the chat model asked for the analysis.
	DefaultModel = "mixtral-8x7b-32768"
	// DefaultTemperature is the sampling temperature sent with each request.
	DefaultTemperature = 0.7
	// DefaultTimeout bounds the single outbound request.
	DefaultTimeout = 30 * time.Second

	completionsPath = "/chat/completions"
	source          = "market"
	maxBodyBytes    = 8 << 20
)

// Client generates market analysis chart data through an OpenAI-compatible chat
// completions API. It sends one request per call and does not retry or rate limit.
type Client struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Client      *http.Client
	Timeout     time.Duration
	Logger      *logging.Logger
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, apiKey string) *Client {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = DefaultBaseURL
	}

	return &Client{
		APIKey:      strings.TrimSpace(apiKey),
		BaseURL:     url,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		Timeout:     DefaultTimeout,
	}
}

// FetchAnalysis asks the model for chart data about query. Failures are always
// returned as *core.FetchError.
func (c *Client) FetchAnalysis(ctx context.Context, query string) (*Analysis, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c == nil || strings.TrimSpace(c.APIKey) == "" {
		return nil, fail(&core.ConfigError{Field: "market.api_key", Message: "API key is not configured"}, core.Classification{Kind: core.ErrorKindConfig}, 0)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fail(&core.ConfigError{Field: "query", Message: "search query is required"}, core.Classification{Kind: core.ErrorKindConfig}, 0)
	}

	payload, err := buildChatRequest(c.model(), c.temperature(), query)
	if err != nil {
		return nil, fail(&core.ConfigError{Field: "market.model", Message: err.Error()}, core.Classification{Kind: core.ErrorKindConfig}, 0)
	}

	analysis, err := c.complete(ctx, query, payload)
	if err != nil {
		classification := core.Classification{Kind: core.ErrorKindUnknown}
		if ctx.Err() == nil {
			classification = engine.Classify(err)
		}
		metrics.RecordUpstreamAttempt(source, string(classification.Kind))
		return nil, fail(err, classification, 1)
	}
	metrics.RecordUpstreamAttempt(source, "success")
	return analysis, nil
}

func (c *Client) complete(ctx context.Context, query string, payload *chatCompletionRequest) (*Analysis, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := strings.TrimRight(c.baseURL(), "/") + completionsPath
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := c.Client
	if client == nil {
		client = &http.Client{}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, engine.StatusFromResponse(resp)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &core.ValidationError{Problems: []string{"$: malformed JSON: " + err.Error()}}
	}
	if parsed.Usage != nil && c.Logger != nil {
		c.Logger.Debug("Market analysis completion",
			zap.String("model", c.model()),
			zap.Int("prompt_tokens", parsed.Usage.PromptTokens),
			zap.Int("completion_tokens", parsed.Usage.CompletionTokens))
	}

	text, err := firstContent(&parsed)
	if err != nil {
		return nil, err
	}
	return parseAnalysis(query, text)
}

func fail(err error, classification core.Classification, attempts int) *core.FetchError {
	message := err.Error()
	var statusErr *core.StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		message = statusErr.Message
	}

	metrics.RecordUpstreamFailure(source, string(classification.Kind))
	return &core.FetchError{
		Message:    message,
		Kind:       classification.Kind,
		HTTPStatus: classification.HTTPStatus,
		Retryable:  classification.Retryable,
		Attempts:   attempts,
		Err:        err,
	}
}

func (c *Client) baseURL() string {
	if strings.TrimSpace(c.BaseURL) != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) model() string {
	if strings.TrimSpace(c.Model) != "" {
		return c.Model
	}
	return DefaultModel
}

func (c *Client) temperature() float64 {
	if c.Temperature > 0 {
		return c.Temperature
	}
	return DefaultTemperature
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}
