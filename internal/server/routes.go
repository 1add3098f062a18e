package server

import (
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/insightdeck/insightdeck/internal/appid"
	"github.com/insightdeck/insightdeck/internal/observability"
	"github.com/insightdeck/insightdeck/internal/server/handlers"
)

// Admin signal endpoint limits, per minute.
const (
	adminSignalRate  = 10
	adminSignalBurst = 5
)

func (s *Server) registerRoutes() {
	health := s.deps.Health
	s.router.Route("/health", func(r chi.Router) {
		r.Get("/", health.HealthHandler)
		r.Get("/live", health.LivenessHandler)
		r.Get("/ready", health.ReadinessHandler)
		r.Get("/startup", health.StartupHandler)
	})
	s.router.Get("/version", handlers.Version(s.deps.Outbound))
	s.router.Get("/metrics", MetricsHandler)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/videos/{videoID}/comments", handlers.CommentsHandler(s.deps.Comments))
		r.Get("/playstore/apps", handlers.PlayStoreHandler(s.deps.PlayStore))
		r.Get("/market", handlers.MarketHandler(s.deps.Market))
	})

	if token := strings.TrimSpace(os.Getenv(appid.EnvKey("admin_token"))); token != "" {
		s.router.Post("/admin/signal", signals.NewHTTPHandler(signals.HTTPConfig{
			TokenAuth: token,
			RateLimit: adminSignalRate,
			RateBurst: adminSignalBurst,
		}).ServeHTTP)

		if logger := observability.ServerLogger; logger != nil {
			logger.Info("Admin signal endpoint enabled",
				zap.String("path", "/admin/signal"),
				zap.Int("rate_per_minute", adminSignalRate))
		}
	}
}
