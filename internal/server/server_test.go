package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insightdeck/insightdeck/internal/config"
	"github.com/insightdeck/insightdeck/internal/core"
	apperrors "github.com/insightdeck/insightdeck/internal/errors"
)

type fixedComments struct{}

func (fixedComments) FetchPage(ctx context.Context, videoID string, opts core.FetchOptions) (*core.Page, error) {
	return &core.Page{Comments: []core.Comment{{Text: "hi " + videoID}}, TotalResults: 1}, nil
}

func testServer() *Server {
	return New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, Dependencies{Comments: fixedComments{}})
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := testServer()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "NOT_FOUND", body.Error.Code)
	require.Equal(t, rec.Header().Get("X-Request-ID"), body.Error.RequestID)
}

func TestServerMethodNotAllowed(t *testing.T) {
	srv := testServer()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/videos/abc/comments", nil))

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerRoutesComments(t *testing.T) {
	srv := testServer()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos/abc/comments", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var page core.Page
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	require.Equal(t, "hi abc", page.Comments[0].Text)
}

func TestServerPlayStoreNotConfigured(t *testing.T) {
	srv := testServer()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/playstore/apps?q=notes", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServerHealthWithoutCheckers(t *testing.T) {
	srv := testServer()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServerAddr(t *testing.T) {
	srv := New(config.ServerConfig{Host: "localhost", Port: 8080}, Dependencies{})
	require.Equal(t, "localhost:8080", srv.Addr())
}
