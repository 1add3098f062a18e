package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/insightdeck/insightdeck/internal/appid"
	"github.com/insightdeck/insightdeck/internal/config"
	"github.com/insightdeck/insightdeck/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   filepath.Base(os.Args[0]),
	Short: appid.Get().Description,
	Long: fmt.Sprintf(`%s - %s

Comments are fetched through a shared admission window (5 requests per
minute by default) and retried with linear backoff on rate limiting and
transient upstream failures.`, appid.Get().BinaryName, appid.Get().Description),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early so CLI runs never emit metrics to stdout.
	// Server mode initializes the Prometheus exporter later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	identity := appid.Get()
	if identity.BinaryName != "" {
		rootCmd.Use = identity.BinaryName
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default is %s)", config.DefaultConfigPath()))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
}

// initConfig sets up the CLI logger and pins the config file before any
// command loads configuration.
func initConfig() {
	observability.InitCLILogger(appid.Get().BinaryName, verbose)

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitFileNotFound, "Config file not found", err)
		}
		config.SetConfigFile(cfgFile)
		observability.CLILogger.Debug("Using config file", zap.String("path", cfgFile))
	}
}

// loadConfig loads the layered configuration. Configuration errors are
// reported with the config-invalid exit code.
func loadConfig(ctx context.Context, overrides ...map[string]any) *config.Config {
	cfg, err := config.Load(ctx, overrides...)
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to load configuration", err)
	}
	return cfg
}
