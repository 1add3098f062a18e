package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/insightdeck/insightdeck/internal/core"
	"github.com/insightdeck/insightdeck/internal/core/market"
	"github.com/insightdeck/insightdeck/internal/core/playstore"
	apperrors "github.com/insightdeck/insightdeck/internal/errors"
)

// CommentFetcher fetches one page of video comments.
type CommentFetcher interface {
	FetchPage(ctx context.Context, videoID string, opts core.FetchOptions) (*core.Page, error)
}

// AnalyticsFetcher fetches app store analytics for a search query.
type AnalyticsFetcher interface {
	FetchAnalytics(ctx context.Context, query string) (*playstore.AppAnalytics, error)
}

// MarketAnalyzer generates market analysis chart data for a query.
type MarketAnalyzer interface {
	FetchAnalysis(ctx context.Context, query string) (*market.Analysis, error)
}

// CommentsHandler serves GET /api/v1/videos/{videoID}/comments.
func CommentsHandler(fetcher CommentFetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fetcher == nil {
			apperrors.RespondWithError(w, r, apperrors.WrapInternal(r.Context(), nil, "comment fetcher is not configured"))
			return
		}

		videoID := strings.TrimSpace(chi.URLParam(r, "videoID"))
		if videoID == "" {
			apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), nil, "videoID is required"))
			return
		}

		opts := core.FetchOptions{PageCursor: r.URL.Query().Get("pageToken")}
		if raw := strings.TrimSpace(r.URL.Query().Get("maxResults")); raw != "" {
			maxResults, err := strconv.Atoi(raw)
			if err != nil || maxResults < 0 {
				apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "maxResults must be a non-negative integer"))
				return
			}
			opts.MaxResults = maxResults
		}

		page, err := fetcher.FetchPage(r.Context(), videoID, opts)
		if err != nil {
			apperrors.RespondWithError(w, r, apperrors.FromError(r.Context(), err))
			return
		}

		writeJSON(w, http.StatusOK, page)
	}
}

// PlayStoreHandler serves GET /api/v1/playstore/apps?q=.
func PlayStoreHandler(fetcher AnalyticsFetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fetcher == nil {
			apperrors.RespondWithError(w, r, apperrors.WrapInternal(r.Context(), nil, "play store client is not configured"))
			return
		}

		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), nil, "query parameter q is required"))
			return
		}

		analytics, err := fetcher.FetchAnalytics(r.Context(), query)
		if err != nil {
			apperrors.RespondWithError(w, r, apperrors.FromError(r.Context(), err, playstore.ErrNoResults))
			return
		}

		writeJSON(w, http.StatusOK, analytics)
	}
}

// MarketHandler serves GET /api/v1/market?q=.
func MarketHandler(analyzer MarketAnalyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if analyzer == nil {
			apperrors.RespondWithError(w, r, apperrors.WrapInternal(r.Context(), nil, "market analysis client is not configured"))
			return
		}

		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), nil, "query parameter q is required"))
			return
		}

		analysis, err := analyzer.FetchAnalysis(r.Context(), query)
		if err != nil {
			apperrors.RespondWithError(w, r, apperrors.FromError(r.Context(), err))
			return
		}

		writeJSON(w, http.StatusOK, analysis)
	}
}
