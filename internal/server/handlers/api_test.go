package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/insightdeck/insightdeck/internal/core"
	"github.com/insightdeck/insightdeck/internal/core/market"
	"github.com/insightdeck/insightdeck/internal/core/playstore"
	apperrors "github.com/insightdeck/insightdeck/internal/errors"
)

type stubComments struct {
	videoID string
	opts    core.FetchOptions
	page    *core.Page
	err     error
}

func (s *stubComments) FetchPage(ctx context.Context, videoID string, opts core.FetchOptions) (*core.Page, error) {
	s.videoID = videoID
	s.opts = opts
	return s.page, s.err
}

type stubAnalytics struct {
	result *playstore.AppAnalytics
	err    error
}

func (s stubAnalytics) FetchAnalytics(ctx context.Context, query string) (*playstore.AppAnalytics, error) {
	return s.result, s.err
}

type stubMarket struct {
	query    string
	analysis *market.Analysis
	err      error
}

func (s *stubMarket) FetchAnalysis(ctx context.Context, query string) (*market.Analysis, error) {
	s.query = query
	return s.analysis, s.err
}

func serveComments(fetcher CommentFetcher, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/api/v1/videos/{videoID}/comments", CommentsHandler(fetcher))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.HTTPErrorResponse {
	t.Helper()
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestCommentsHandlerReturnsPage(t *testing.T) {
	fetcher := &stubComments{page: &core.Page{
		Comments:     []core.Comment{{Text: "Great video", Author: "Jane", Likes: 42}},
		NextCursor:   "NEXT",
		TotalResults: 120,
	}}

	rec := serveComments(fetcher, "/api/v1/videos/abc123/comments?maxResults=5&pageToken=CUR")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "abc123", fetcher.videoID)
	require.Equal(t, core.FetchOptions{MaxResults: 5, PageCursor: "CUR"}, fetcher.opts)

	var page core.Page
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	require.Equal(t, "NEXT", page.NextCursor)
	require.Len(t, page.Comments, 1)
	require.Equal(t, int64(42), page.Comments[0].Likes)
}

func TestCommentsHandlerRejectsBadMaxResults(t *testing.T) {
	fetcher := &stubComments{}

	for _, target := range []string{
		"/api/v1/videos/abc/comments?maxResults=ten",
		"/api/v1/videos/abc/comments?maxResults=-1",
	} {
		rec := serveComments(fetcher, target)
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		require.Equal(t, apperrors.CodeInvalidInput, decodeError(t, rec).Error.Code)
	}
	require.Empty(t, fetcher.videoID)
}

func TestCommentsHandlerMapsFetchError(t *testing.T) {
	fetcher := &stubComments{err: &core.FetchError{
		Message:    "upstream rate limit exceeded",
		Kind:       core.ErrorKindRateLimit,
		HTTPStatus: http.StatusTooManyRequests,
		Retryable:  true,
		Attempts:   4,
	}}

	rec := serveComments(fetcher, "/api/v1/videos/abc/comments")

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, apperrors.CodeRateLimited, body.Error.Code)
	require.Equal(t, "rate_limit", body.Error.Details["kind"])
	require.Equal(t, float64(4), body.Error.Details["attempts"])
}

func TestPlayStoreHandler(t *testing.T) {
	t.Run("RequiresQuery", func(t *testing.T) {
		rec := httptest.NewRecorder()
		PlayStoreHandler(stubAnalytics{})(rec, httptest.NewRequest(http.MethodGet, "/api/v1/playstore/apps", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ReturnsAnalytics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		fetcher := stubAnalytics{result: &playstore.AppAnalytics{AppName: "Notes Pro", OverallRating: 4.4}}
		PlayStoreHandler(fetcher)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/playstore/apps?q=notes", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var got playstore.AppAnalytics
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		require.Equal(t, "Notes Pro", got.AppName)
	})

	t.Run("NoResultsIsNotFound", func(t *testing.T) {
		rec := httptest.NewRecorder()
		fetcher := stubAnalytics{err: &core.FetchError{Message: "no results found", Kind: core.ErrorKindUnknown, Err: playstore.ErrNoResults}}
		PlayStoreHandler(fetcher)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/playstore/apps?q=zzz", nil))

		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, apperrors.CodeNotFound, decodeError(t, rec).Error.Code)
	})

	t.Run("ParseFailureIsBadGateway", func(t *testing.T) {
		rec := httptest.NewRecorder()
		fetcher := stubAnalytics{err: &core.FetchError{Message: "invalid response format", Kind: core.ErrorKindParse}}
		PlayStoreHandler(fetcher)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/playstore/apps?q=notes", nil))

		require.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestMarketHandler(t *testing.T) {
	t.Run("RequiresQuery", func(t *testing.T) {
		analyzer := &stubMarket{}
		rec := httptest.NewRecorder()
		MarketHandler(analyzer)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/market?q=%20", nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, apperrors.CodeInvalidInput, decodeError(t, rec).Error.Code)
		require.Empty(t, analyzer.query)
	})

	t.Run("ReturnsAnalysis", func(t *testing.T) {
		analyzer := &stubMarket{analysis: &market.Analysis{
			Query:       "scooters",
			MarketShare: market.DistributionChart{Title: "Share", Labels: []string{"Acme"}, Data: []float64{100}},
		}}
		rec := httptest.NewRecorder()
		MarketHandler(analyzer)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/market?q=electric+scooters", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "electric scooters", analyzer.query)

		var got market.Analysis
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		require.Equal(t, "Share", got.MarketShare.Title)
		require.Equal(t, []float64{100}, got.MarketShare.Data)
	})

	t.Run("MissingKeyIsConfigError", func(t *testing.T) {
		analyzer := &stubMarket{err: &core.FetchError{Message: "API key is not configured", Kind: core.ErrorKindConfig}}
		rec := httptest.NewRecorder()
		MarketHandler(analyzer)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/market?q=scooters", nil))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.Equal(t, apperrors.CodeConfigInvalid, decodeError(t, rec).Error.Code)
	})

	t.Run("UnconfiguredAnalyzer", func(t *testing.T) {
		rec := httptest.NewRecorder()
		MarketHandler(nil)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/market?q=scooters", nil))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
