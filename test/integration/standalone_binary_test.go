package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles cmd/insightdeck and copies it into a directory
// outside the module so no repo files are reachable at runtime.
func buildBinary(t *testing.T) (binary, workDir string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary test is unix-focused")
	}
	if testing.Short() {
		t.Skip("builds the binary")
	}

	goMod, err := exec.Command("go", "env", "GOMOD").Output()
	require.NoError(t, err)
	repoRoot := filepath.Dir(strings.TrimSpace(string(goMod)))
	require.NotEqual(t, ".", repoRoot, "go env GOMOD returned empty")

	built := filepath.Join(t.TempDir(), "insightdeck")
	build := exec.Command("go", "build", "-o", built, "./cmd/insightdeck")
	build.Dir = repoRoot
	out, err := build.CombinedOutput()
	require.NoError(t, err, "go build:\n%s", out)

	workDir = t.TempDir()
	binary = filepath.Join(workDir, "insightdeck")
	data, err := os.ReadFile(built)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(binary, data, 0o755))
	return binary, workDir
}

func TestStandaloneBinary(t *testing.T) {
	binary, workDir := buildBinary(t)
	home := t.TempDir()

	run := func(args ...string) (string, error) {
		c := exec.Command(binary, args...)
		c.Dir = workDir
		c.Env = append(os.Environ(),
			"HOME="+home,
			"XDG_CONFIG_HOME="+filepath.Join(home, "config"),
			"XDG_DATA_HOME="+filepath.Join(home, "data"),
			"INSIGHTDECK_DB_DRIVER=memory",
		)
		out, err := c.CombinedOutput()
		return string(out), err
	}

	t.Run("Version", func(t *testing.T) {
		out, err := run("version")
		require.NoError(t, err, out)
		assert.True(t, strings.HasPrefix(out, "insightdeck "), out)
	})

	t.Run("Help", func(t *testing.T) {
		out, err := run("--help")
		require.NoError(t, err, out)
		for _, sub := range []string{"comments", "playstore", "rate-limit", "serve"} {
			assert.Contains(t, out, sub)
		}
	})

	t.Run("RateLimitListEmpty", func(t *testing.T) {
		out, err := run("rate-limit", "list", "--output-format", "json")
		require.NoError(t, err, out)
		assert.Contains(t, out, "[]")
	})
}
