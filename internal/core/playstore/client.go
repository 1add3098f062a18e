package playstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/insightdeck/insightdeck/internal/core"
	"github.com/insightdeck/insightdeck/internal/core/engine"
	"github.com/insightdeck/insightdeck/internal/metrics"
)

const (
	// DefaultBaseURL is the Play Store scraper API origin.
	DefaultBaseURL = "https://google-play-store-scraper-api.p.rapidapi.com"
	// DefaultHost is sent as the x-rapidapi-host header.
	DefaultHost = "google-play-store-scraper-api.p.rapidapi.com"

	searchPath   = "/search-apps"
	source       = "playstore"
	maxBodyBytes = 8 << 20

	maxTopReviews  = 5
	maxInsightRows = 5
)

// ErrNoResults is wrapped in the FetchError returned when a search matches nothing.
var ErrNoResults = errors.New("no results found")

// AppAnalytics summarises the first app matching a search.
type AppAnalytics struct {
	AppName       string   `json:"app_name"`
	OverallRating float64  `json:"overall_rating"`
	TotalReviews  int64    `json:"total_reviews"`
	TopReviews    []Review `json:"top_reviews"`
	Insights      Insights `json:"insights"`
}

// Review is one user review.
type Review struct {
	Username string  `json:"username"`
	Rating   float64 `json:"rating"`
	Comment  string  `json:"comment"`
	Date     string  `json:"date"`
}

// Insights buckets review texts by sentiment and intent.
type Insights struct {
	PositiveHighlights []string `json:"positive_highlights"`
	NegativeComplaints []string `json:"negative_complaints"`
	FeatureSuggestions []string `json:"feature_suggestions"`
}

// Client performs single-shot app searches. It does not retry or rate limit.
type Client struct {
	APIKey   string
	Host     string
	BaseURL  string
	Language string
	Country  string
	Client   *http.Client
	Timeout  time.Duration
	Clock    func() time.Time
}

type searchRequest struct {
	Language string `json:"language"`
	Country  string `json:"country"`
	Keyword  string `json:"keyword"`
}

type searchResponse struct {
	Success bool      `json:"success"`
	Data    []appData `json:"data"`
}

type appData struct {
	Title   string       `json:"title"`
	Score   float64      `json:"score"`
	Ratings float64      `json:"ratings"`
	Reviews []reviewData `json:"reviews"`
}

type reviewData struct {
	Reviewer  string  `json:"reviewer"`
	Score     float64 `json:"score"`
	Text      string  `json:"text"`
	Timestamp string  `json:"timestamp"`
}

// FetchAnalytics searches for query and summarises the top match.
func (c *Client) FetchAnalytics(ctx context.Context, query string) (*AppAnalytics, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c == nil || strings.TrimSpace(c.APIKey) == "" {
		return nil, fail(&core.ConfigError{Field: "playstore.api_key", Message: "API key is not configured"}, core.Classification{Kind: core.ErrorKindConfig}, 0)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fail(&core.ConfigError{Field: "query", Message: "search query is required"}, core.Classification{Kind: core.ErrorKindConfig}, 0)
	}

	data, err := c.search(ctx, query)
	if err != nil {
		classification := core.Classification{Kind: core.ErrorKindUnknown}
		if ctx.Err() == nil {
			classification = engine.Classify(err)
		}
		metrics.RecordUpstreamAttempt(source, string(classification.Kind))
		return nil, fail(err, classification, 1)
	}
	metrics.RecordUpstreamAttempt(source, "success")

	if !data.Success || len(data.Data) == 0 {
		return nil, fail(ErrNoResults, core.Classification{Kind: core.ErrorKindUnknown}, 1)
	}

	return c.analytics(query, data.Data[0]), nil
}

func (c *Client) search(ctx context.Context, query string) (*searchResponse, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(searchRequest{
		Language: valueOr(c.Language, "en"),
		Country:  valueOr(c.Country, "us"),
		Keyword:  query,
	})
	if err != nil {
		return nil, err
	}

	base := c.baseURL()
	endpoint := base.ResolveReference(&url.URL{Path: strings.TrimRight(base.Path, "/") + searchPath})

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-rapidapi-key", c.APIKey)
	req.Header.Set("x-rapidapi-host", valueOr(c.Host, DefaultHost))

	client := c.Client
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

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &core.ValidationError{Problems: []string{"$: " + err.Error()}}
	}
	return &decoded, nil
}

func (c *Client) analytics(query string, app appData) *AppAnalytics {
	result := &AppAnalytics{
		AppName:       valueOr(app.Title, query),
		OverallRating: app.Score,
		TotalReviews:  int64(app.Ratings),
		TopReviews:    make([]Review, 0, maxTopReviews),
		Insights:      extractInsights(app.Reviews),
	}

	for i, review := range app.Reviews {
		if i == maxTopReviews {
			break
		}
		date := review.Timestamp
		if date == "" {
			date = c.now().Format(time.RFC3339)
		}
		result.TopReviews = append(result.TopReviews, Review{
			Username: valueOr(review.Reviewer, "Anonymous"),
			Rating:   review.Score,
			Comment:  review.Text,
			Date:     date,
		})
	}
	return result
}

// extractInsights buckets reviews: score >= 4 is positive, score <= 2 is negative,
// and texts mentioning a suggestion are feature requests. Each bucket keeps at most
// five entries.
func extractInsights(reviews []reviewData) Insights {
	insights := Insights{
		PositiveHighlights: []string{},
		NegativeComplaints: []string{},
		FeatureSuggestions: []string{},
	}

	for _, review := range reviews {
		switch {
		case review.Score >= 4:
			insights.PositiveHighlights = appendCapped(insights.PositiveHighlights, review.Text)
		case review.Score <= 2:
			insights.NegativeComplaints = appendCapped(insights.NegativeComplaints, review.Text)
		}

		text := strings.ToLower(review.Text)
		if strings.Contains(text, "suggest") || strings.Contains(text, "would be nice") || strings.Contains(text, "should add") {
			insights.FeatureSuggestions = appendCapped(insights.FeatureSuggestions, review.Text)
		}
	}
	return insights
}

func appendCapped(values []string, value string) []string {
	if len(values) >= maxInsightRows {
		return values
	}
	return append(values, value)
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

func (c *Client) baseURL() *url.URL {
	if c.BaseURL != "" {
		if parsed, err := url.Parse(c.BaseURL); err == nil {
			return parsed
		}
	}
	parsed, _ := url.Parse(DefaultBaseURL)
	return parsed
}

func (c *Client) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
