package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ryanm101/ziyou/internal/api"
	"github.com/ryanm101/ziyou/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// runServe serves the API until ctx ends or the listener fails.
func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	// Populate the cache gauges before the first scrape.
	if _, err := a.store.Stats(ctx); err != nil {
		logging.Warn("failed to read cache stats", "error", err)
	}

	server := api.NewServer(a.svc, a.store, logging.Get(), api.Options{
		AllowedOrigins: cfg.GetAllowedOrigins(),
		RateLimit:      cfg.Server.RateLimit,
	})

	port := cfg.GetPort()
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// Recommendations wait on the model and up to one catalog timeout.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.Info("starting ziyou API",
			"addr", srv.Addr,
			"catalog", cfg.GetCatalogProvider(),
			"db", cfg.GetDBPath(),
			"cache_ttl", cfg.GetCacheTTL(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logging.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error("graceful shutdown failed", "error", err)
		}
	}
	return nil
}
