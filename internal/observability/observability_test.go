package observability

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoggers(t *testing.T) {
	origCLI, origServer := CLILogger, ServerLogger
	t.Cleanup(func() { CLILogger, ServerLogger = origCLI, origServer })

	CLILogger, ServerLogger = nil, nil
	require.Nil(t, Logger())

	InitCLILogger("insightdeck-test", true)
	require.NotNil(t, CLILogger)
	require.Same(t, CLILogger, Logger())
	CLILogger.Debug("cli logger ready", zap.String("test", "value"))

	t.Setenv("INSIGHTDECK_ENV", "test")
	InitServerLogger("insightdeck-test", "debug", "insightdeck")
	require.NotNil(t, ServerLogger)
	require.Same(t, ServerLogger, Logger())
	ServerLogger.Info("server logger ready", zap.Int("port", 8080))
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"trace":   "TRACE",
		"DEBUG":   "DEBUG",
		" info ":  "INFO",
		"warning": "WARN",
		"error":   "ERROR",
		"bogus":   "INFO",
	}
	for input, want := range cases {
		require.Equal(t, want, parseLogLevel(input), input)
	}
}

func TestEnvironment(t *testing.T) {
	t.Setenv("INSIGHTDECK_ENV", "")
	require.Equal(t, "production", environment())

	t.Setenv("INSIGHTDECK_ENV", "staging")
	require.Equal(t, "staging", environment())
}

func TestResolvePort(t *testing.T) {
	port, err := resolvePort("127.0.0.1:9464")
	require.NoError(t, err)
	require.Equal(t, 9464, port)

	_, err = resolvePort("no-port")
	require.Error(t, err)
}

func TestStopMetricsClearsState(t *testing.T) {
	StopMetrics()
	require.Nil(t, TelemetrySystem)
	require.Nil(t, PrometheusExporter)
	require.Zero(t, GetMetricsPort())
}

func TestServerLoggerConfig(t *testing.T) {
	t.Setenv("INSIGHTDECK_ENV", "test")

	cfg := serverLoggerConfig("insightdeck", "warn", "insightdeck")
	require.EqualValues(t, "WARN", cfg.DefaultLevel)
	require.EqualValues(t, "test", cfg.Environment)
	require.Equal(t, "insightdeck", cfg.StaticFields["namespace"])
	require.Len(t, cfg.Sinks, 1)
	require.EqualValues(t, "stderr", cfg.Sinks[0].Console.Stream)

	bare := serverLoggerConfig("insightdeck", "", "")
	require.EqualValues(t, "INFO", bare.DefaultLevel)
	require.NotContains(t, bare.StaticFields, "namespace")
}
