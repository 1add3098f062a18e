package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/insightdeck/insightdeck/internal/appid"
	"github.com/insightdeck/insightdeck/internal/config"
	"github.com/insightdeck/insightdeck/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display version, runtime and effective configuration. Credentials are reported as set or not set.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()

		log.Info("=== InsightDeck Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + appid.Get().BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info("")

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		log.Info("Configuration:")
		log.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		log.Info(fmt.Sprintf("  Server:         %s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  Store Driver:   "+cfg.Store.Driver, zap.String("store_driver", cfg.Store.Driver))
		switch {
		case strings.EqualFold(cfg.Store.Driver, "redis"):
			log.Info("  Redis Addr:     " + cfg.Store.Redis.Addr)
		case strings.TrimSpace(cfg.Store.URL) != "":
			log.Info("  Store URL:      " + cfg.Store.URL)
		default:
			log.Info("  Store Path:     " + cfg.Store.Path)
		}
		log.Info(fmt.Sprintf("  Metrics:        enabled=%t port=%d", cfg.Metrics.Enabled, cfg.Metrics.Port))
		log.Info("")

		log.Info("Admission:")
		log.Info("  Key:            " + cfg.RateLimit.Key)
		log.Info(fmt.Sprintf("  Quota:          %d per %s", cfg.RateLimit.Requests, cfg.RateLimit.Window))
		log.Info(fmt.Sprintf("  Safeguard:      %t (every %s)", cfg.RateLimit.Safeguard, cfg.RateLimit.SafeguardInterval))
		log.Info(fmt.Sprintf("  Retry:          %d retries, %s linear base", cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay))
		log.Info("")

		log.Info("Upstreams:")
		log.Info("  YouTube Host:   " + cfg.YouTube.Host)
		log.Info("  YouTube Key:    " + credentialState(cfg.YouTube.APIKey))
		log.Info("  PlayStore Host: " + cfg.PlayStore.Host)
		log.Info("  PlayStore Key:  " + credentialState(cfg.PlayStore.APIKey))
		log.Info("  Market API:     " + cfg.Market.BaseURL + " (" + cfg.Market.Model + ")")
		log.Info("  Market Key:     " + credentialState(cfg.Market.APIKey))
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func credentialState(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(not set)"
	}
	return "(set)"
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
