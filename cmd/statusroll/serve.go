package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/statusroll/internal/config"
	"github.com/hazz-dev/statusroll/internal/scheduler"
	"github.com/hazz-dev/statusroll/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run on a schedule and serve the history API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger
	cfg := a.cfg

	// 1. Signal context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 2. Engine with storage and events
	eng, cleanup, err := a.newEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	if _, err := eng.Probes(); err != nil {
		return fmt.Errorf("resolving probes: %w", err)
	}

	// 3. API server
	apiServer := server.New(eng, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 4. Scheduler, reporting into the API's health endpoint
	sched := scheduler.New(eng, cfg.Schedule.Interval.Duration, logger)
	sched.SetOnReport(apiServer.RecordRun)
	sched.Start(ctx)
	logger.Info("scheduler started", "interval", cfg.Schedule.Interval.Duration)

	// 5. Config reload
	go func() {
		err := config.Watch(ctx, cfgFile, func(next *config.Config) {
			if next.Storage.URL != cfg.Storage.URL || next.Server.Address != cfg.Server.Address {
				logger.Warn("storage and server settings change on restart only")
			}
			eng.SetConfig(next)
		}, logger)
		if err != nil {
			logger.Error("config watcher stopped", "error", err)
		}
	}()

	// 6. HTTP server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 7. Wait for signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		stop()
		sched.Wait()
		return fmt.Errorf("HTTP server: %w", err)
	}

	// 8. Graceful shutdown
	sched.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
