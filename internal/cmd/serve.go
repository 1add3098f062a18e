package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/insightdeck/insightdeck/internal/appid"
	"github.com/insightdeck/insightdeck/internal/core/store"
	errwrap "github.com/insightdeck/insightdeck/internal/errors"
	"github.com/insightdeck/insightdeck/internal/metrics"
	"github.com/insightdeck/insightdeck/internal/observability"
	"github.com/insightdeck/insightdeck/internal/server"
	"github.com/insightdeck/insightdeck/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// windowStoreChecker reports the admission window backend healthy when it
// answers a count query.
func windowStoreChecker(backend store.Backend) handlers.CheckerFunc {
	return func(ctx context.Context) error {
		_, err := backend.CountWindows(ctx, store.WindowQuery{All: true})
		return err
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server with graceful shutdown support.

Endpoints:
  GET /api/v1/videos/{videoID}/comments?maxResults=&pageToken=
  GET /api/v1/playstore/apps?q=
  GET /health, /health/live, /health/ready, /health/startup, /version

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := appid.Get()
		namespace := identity.TelemetryNamespace

		overrides := map[string]any{}
		listen := map[string]any{}
		if cmd.Flags().Changed("host") {
			listen["host"] = serverHost
		}
		if cmd.Flags().Changed("port") {
			listen["port"] = serverPort
		}
		if len(listen) > 0 {
			overrides["server"] = listen
		}
		cfg := loadConfig(cmd.Context(), overrides)

		observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, namespace)
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}
		metrics.SetServerStartTime(time.Now().Unix())

		backend, err := openBackend(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		limiter := newLimiter(cfg, backend)
		fetcher := newCommentFetcher(cfg, limiter)
		fetcher.Logger = logger

		health := handlers.NewHealthManager(versionInfo.Version)
		health.RegisterChecker("window_store", windowStoreChecker(backend))
		if cfg.Metrics.Enabled {
			health.RegisterChecker("telemetry", telemetryHealthChecker{})
		}

		logger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("store_driver", backend.Driver()),
			zap.Int("rate_limit_requests", cfg.RateLimit.Requests),
			zap.Duration("rate_limit_window", cfg.RateLimit.Window),
			zap.Int("retry_max_attempts", cfg.Retry.MaxAttempts))

		srv := server.New(cfg.Server, server.Dependencies{
			Comments:  fetcher,
			PlayStore: newPlayStoreClient(cfg),
			Market:    newMarketClient(cfg),
			Health:    health,
			Outbound: &handlers.OutboundPolicy{
				RequestsPerWindow: cfg.RateLimit.Requests,
				Window:            cfg.RateLimit.Window.String(),
				RetryBaseDelay:    cfg.Retry.BaseDelay.String(),
				RetryMaxAttempts:  cfg.Retry.MaxAttempts,
			},
		})

		runCtx, stopBackground := context.WithCancel(context.Background())
		if cfg.RateLimit.Safeguard {
			go limiter.RunSafeguard(runCtx, cfg.RateLimit.SafeguardInterval)
		}

		// Shutdown handlers run in LIFO order: HTTP server, background work,
		// window store, then the logger flush.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			stopBackground()
			return backend.Close()
		})

		signals.OnShutdown(func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}
			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			stopBackground()
			_ = backend.Close()
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host (overrides server.host)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port (overrides server.port)")
}
