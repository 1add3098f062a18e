package handlers

import (
	"net/http"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/insightdeck/insightdeck/internal/appid"
)

// Build metadata, set once from main.
var (
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"
)

// SetVersionInfo records the build metadata reported by /version.
func SetVersionInfo(version, commit, buildDate string) {
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

// OutboundPolicy describes how the service paces and retries upstream calls.
type OutboundPolicy struct {
	RequestsPerWindow int    `json:"requests_per_window"`
	Window            string `json:"window"`
	RetryBaseDelay    string `json:"retry_base_delay"`
	RetryMaxAttempts  int    `json:"retry_max_attempts"`
}

// VersionResponse is the /version body.
type VersionResponse struct {
	Name      string          `json:"name"`
	Vendor    string          `json:"vendor"`
	Version   string          `json:"version"`
	Commit    string          `json:"git_commit"`
	BuildDate string          `json:"build_date"`
	Go        string          `json:"go_version"`
	Platform  string          `json:"platform"`
	Gofulmen  string          `json:"gofulmen"`
	Crucible  string          `json:"crucible"`
	Outbound  *OutboundPolicy `json:"outbound,omitempty"`
}

// Version reports build metadata together with the outbound policy the
// server was started with. A nil policy is omitted.
func Version(policy *OutboundPolicy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := appid.Get()
		libs := crucible.GetVersion()

		writeJSON(w, http.StatusOK, VersionResponse{
			Name:      identity.BinaryName,
			Vendor:    identity.Vendor,
			Version:   AppVersion,
			Commit:    AppCommit,
			BuildDate: AppBuildDate,
			Go:        runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			Gofulmen:  libs.Gofulmen,
			Crucible:  libs.Crucible,
			Outbound:  policy,
		})
	}
}
