package appid

import "strings"

// Identity describes how the binary names itself in config paths, env vars and telemetry.
type Identity struct {
	BinaryName         string
	Vendor             string
	ConfigName         string
	EnvPrefix          string
	TelemetryNamespace string
	Description        string
}

var current = Identity{
	BinaryName:         "insightdeck",
	Vendor:             "insightdeck",
	ConfigName:         "insightdeck",
	EnvPrefix:          "INSIGHTDECK_",
	TelemetryNamespace: "insightdeck",
	Description:        "Fetch audience feedback (video comments, app store reviews) from rate-limited APIs",
}

// Get returns the process identity.
func Get() Identity {
	return current
}

// EnvKey builds a prefixed environment variable name, e.g. EnvKey("youtube", "api_key")
// returns INSIGHTDECK_YOUTUBE_API_KEY.
func EnvKey(parts ...string) string {
	upper := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		upper = append(upper, strings.ToUpper(part))
	}
	return current.EnvPrefix + strings.Join(upper, "_")
}
