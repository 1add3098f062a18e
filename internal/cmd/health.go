package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/insightdeck/insightdeck/internal/config"
	"github.com/insightdeck/insightdeck/internal/core/store"
	"github.com/insightdeck/insightdeck/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify that configuration loads, the admission window store answers and credentials are present.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		log.Info("Running health check...")

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		log.Info("✅ Configuration loaded")

		backend, err := openBackend(cmd.Context(), cfg)
		if err != nil {
			ExitWithCode(log, foundry.ExitExternalServiceUnavailable, "Admission window store unavailable", err)
			return
		}
		defer backend.Close() // nolint:errcheck // best-effort cleanup

		count, err := backend.CountWindows(cmd.Context(), store.WindowQuery{All: true})
		if err != nil {
			ExitWithCode(log, foundry.ExitExternalServiceUnavailable, "Admission window store unavailable", err)
			return
		}
		log.Info("✅ Admission window store reachable",
			zap.String("driver", backend.Driver()),
			zap.Int("windows", count))

		if cfg.YouTube.APIKey == "" {
			log.Warn("⚠️  YouTube API key not set; comments requests will fail with a config error")
		} else {
			log.Info("✅ YouTube API key configured")
		}
		if cfg.PlayStore.APIKey == "" {
			log.Warn("⚠️  Play Store API key not set; playstore requests will fail with a config error")
		} else {
			log.Info("✅ Play Store API key configured")
		}

		log.Info("")
		log.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
