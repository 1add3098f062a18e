package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/insightdeck/insightdeck/internal/config"
	"github.com/insightdeck/insightdeck/internal/core/engine"
	"github.com/insightdeck/insightdeck/internal/core/market"
	"github.com/insightdeck/insightdeck/internal/core/playstore"
	"github.com/insightdeck/insightdeck/internal/core/store"
	"github.com/insightdeck/insightdeck/internal/core/youtube"
	"github.com/insightdeck/insightdeck/internal/observability"
)

// openBackend opens the configured admission window backend.
func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	backend, err := store.OpenBackend(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	if logger := observability.Logger(); logger != nil {
		logger.Debug("Opened admission window store", zap.String("driver", backend.Driver()))
	}
	return backend, nil
}

func newLimiter(cfg *config.Config, windows engine.WindowStore) *engine.AdmissionLimiter {
	return engine.NewAdmissionLimiter(windows, cfg.RateLimit.Key, cfg.RateLimit.Requests, cfg.RateLimit.Window)
}

func newRetryPolicy(cfg *config.Config) engine.RetryPolicy {
	return engine.RetryPolicy{
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxAttempts: cfg.Retry.MaxAttempts,
	}
}

func newCommentFetcher(cfg *config.Config, limiter *engine.AdmissionLimiter) *youtube.CommentFetcher {
	return &youtube.CommentFetcher{
		APIKey:  cfg.YouTube.APIKey,
		Host:    cfg.YouTube.Host,
		BaseURL: cfg.YouTube.BaseURL,
		Limiter: limiter,
		Policy:  newRetryPolicy(cfg),
		Timeout: cfg.YouTube.Timeout,
		Logger:  observability.Logger(),
	}
}

func newPlayStoreClient(cfg *config.Config) *playstore.Client {
	return &playstore.Client{
		APIKey:   cfg.PlayStore.APIKey,
		Host:     cfg.PlayStore.Host,
		BaseURL:  cfg.PlayStore.BaseURL,
		Language: cfg.PlayStore.Language,
		Country:  cfg.PlayStore.Country,
		Timeout:  cfg.PlayStore.Timeout,
	}
}

func newMarketClient(cfg *config.Config) *market.Client {
	client := market.NewClient(cfg.Market.BaseURL, cfg.Market.APIKey)
	if cfg.Market.Model != "" {
		client.Model = cfg.Market.Model
	}
	if cfg.Market.Temperature > 0 {
		client.Temperature = cfg.Market.Temperature
	}
	if cfg.Market.Timeout > 0 {
		client.Timeout = cfg.Market.Timeout
	}
	client.Logger = observability.Logger()
	return client
}
