package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ryanm101/ziyou/internal/cache"
	"github.com/ryanm101/ziyou/internal/catalog"
	"github.com/ryanm101/ziyou/internal/db"
	"github.com/ryanm101/ziyou/internal/logging"
	"github.com/ryanm101/ziyou/internal/recommend"
	"github.com/ryanm101/ziyou/internal/suggest"
)

// app bundles the wired components shared by the commands.
type app struct {
	db    *db.DB
	store *cache.Store
	svc   *recommend.Service
}

func (a *app) Close() error {
	return a.db.Close()
}

func openDB(ctx context.Context) (*db.DB, error) {
	return db.Open(ctx, db.Options{
		Path:   cfg.GetDBPath(),
		Driver: cfg.GetDriver(),
	})
}

// newResolver builds the configured catalog resolver.
func newResolver(ctx context.Context, logger *slog.Logger) (catalog.Resolver, error) {
	switch provider := cfg.GetCatalogProvider(); provider {
	case "rawg":
		if cfg.Catalog.RAWGAPIKey == "" {
			logger.Warn("RAWG_API_KEY is not set; catalog requests will be rejected")
		}
		return catalog.NewRAWGResolver(catalog.RAWGConfig{
			APIKey:  cfg.Catalog.RAWGAPIKey,
			BaseURL: cfg.GetRAWGBaseURL(),
			Timeout: cfg.GetCatalogTimeout(),
		}, logger), nil
	case "igdb":
		return catalog.NewIGDBResolver(ctx, catalog.IGDBConfig{
			ClientID:     cfg.Catalog.IGDBClientID,
			ClientSecret: cfg.Catalog.IGDBClientSecret,
			Timeout:      cfg.GetCatalogTimeout(),
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported catalog provider %q", provider)
	}
}

// newApp validates the configuration and wires the recommendation pipeline.
// withResolver is false for maintenance commands that never resolve games.
func newApp(ctx context.Context, withResolver bool) (*app, error) {
	if cfgErr != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.Get()

	database, err := openDB(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	store := cache.New(database, cfg.GetCacheTTL())

	var resolver catalog.Resolver
	if withResolver {
		resolver, err = newResolver(ctx, logger)
		if err != nil {
			_ = database.Close()
			return nil, err
		}
	}

	if cfg.Gemini.APIKey == "" && withResolver {
		logger.Warn("GEMINI_API_KEY is not set; recommendations will fail")
	}
	source := suggest.NewGeminiSource(suggest.GeminiConfig{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.GetGeminiModel(),
		BaseURL: cfg.GetGeminiBaseURL(),
	}, logger)

	return &app{
		db:    database,
		store: store,
		svc:   recommend.NewService(source, store, resolver, logger),
	}, nil
}
