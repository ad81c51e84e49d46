// Package main provides the entry point for the repoingest MCP server.
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

	"github.com/raphaelgruber/repoingest/internal/app"
	"github.com/raphaelgruber/repoingest/internal/config"
	"github.com/raphaelgruber/repoingest/internal/server"
	"github.com/raphaelgruber/repoingest/internal/tools"
)

const version = "0.1.0"

func main() {
	httpAddr := flag.String("http", "", "serve streamable HTTP on this address instead of stdio")
	flag.Parse()

	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		exitCode = 1
		return
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.Level())
	defer cleanup()

	logger.Info("repoingest-mcp starting",
		"version", version,
		"store", cfg.StoreBackend,
		"s3_bucket", cfg.S3Bucket,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build service", "error", err)
		exitCode = 1
		return
	}
	defer func() {
		logger.Info("stopping ingestion service")
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := a.Close(shutdownCtx); err != nil {
			logger.Warn("service shutdown incomplete", "error", err)
		}
	}()

	srv := server.New(version, logger)
	srv.Setup()
	tools.RegisterAll(srv.MCPServer(), &tools.Dependencies{
		Service: a.Service,
		Logger:  logger,
	})

	logger.Info("server ready, awaiting connections")

	if *httpAddr != "" {
		err = serveHTTP(ctx, *httpAddr, srv.HTTPHandler())
	} else {
		// Blocks until disconnect or context cancelled
		err = srv.Run(ctx)
	}
	if err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		exitCode = 1
		return
	}

	logger.Info("shutdown complete")
}

func serveHTTP(ctx context.Context, addr string, h http.Handler) error {
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     h,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
