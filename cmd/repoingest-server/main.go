// Package main provides the HTTP server for repository ingestion.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/repoingest/internal/api"
	"github.com/raphaelgruber/repoingest/internal/app"
	"github.com/raphaelgruber/repoingest/internal/config"
)

const version = "0.1.0"

func main() {
	addr := flag.String("addr", "", "listen address (overrides REPOINGEST_ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ServerAddr = *addr
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.Level())
	defer cleanup()

	logger.Info("starting repoingest-server",
		"version", version,
		"addr", cfg.ServerAddr,
		"store", cfg.StoreBackend,
		"workers", cfg.WorkerPoolSize,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.Build(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to build service", "error", err)
		os.Exit(1)
	}

	handler := api.New(a.Service,
		api.WithLogger(logger),
		api.WithSyncStatus(a.Index),
	).Handler()

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // watch streams stay open until the job finishes
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("API available", "url", cfg.ServerURL+"/api")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutting down server...", "signal", sig)

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := a.Close(ctx); err != nil {
		logger.Error("service shutdown incomplete", "error", err)
	}

	logger.Info("server stopped")
}
