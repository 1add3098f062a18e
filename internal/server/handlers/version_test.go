package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getVersion(t *testing.T, policy *OutboundPolicy) VersionResponse {
	t.Helper()

	rec := httptest.NewRecorder()
	Version(policy)(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestVersionReportsBuildMetadata(t *testing.T) {
	SetVersionInfo("1.2.3", "abcd123", "2026-10-01T12:00:00Z")
	t.Cleanup(func() { SetVersionInfo("dev", "unknown", "unknown") })

	resp := getVersion(t, nil)

	assert.Equal(t, "insightdeck", resp.Name)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "abcd123", resp.Commit)
	assert.NotEmpty(t, resp.Gofulmen)
	assert.NotEmpty(t, resp.Crucible)
	assert.Nil(t, resp.Outbound)
}

func TestVersionReportsOutboundPolicy(t *testing.T) {
	resp := getVersion(t, &OutboundPolicy{
		RequestsPerWindow: 5,
		Window:            "1m0s",
		RetryBaseDelay:    "2s",
		RetryMaxAttempts:  3,
	})

	require.NotNil(t, resp.Outbound)
	assert.Equal(t, 5, resp.Outbound.RequestsPerWindow)
	assert.Equal(t, "1m0s", resp.Outbound.Window)
	assert.Equal(t, 3, resp.Outbound.RetryMaxAttempts)
}
