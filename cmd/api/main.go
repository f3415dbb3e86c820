// Command api is the SkyVibes notification server.
//
// Usage:
//
//	skyvibes-api
//	API_PORT=8080 NOTIFY_SCHEDULE="0 8 * * *" skyvibes-api

// @title SkyVibes Notification API
// @version 1.0.0
// @description Weather push notifications: device registration, weather proxy, single pushes and the batch weather notification trigger.
// @host localhost:8000
// @BasePath /
// @schemes http https
// @contact.name SkyVibes
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/albapepper/skyvibes/internal/api"
	"github.com/albapepper/skyvibes/internal/api/handler"
	"github.com/albapepper/skyvibes/internal/app"
	"github.com/albapepper/skyvibes/internal/cache"
	"github.com/albapepper/skyvibes/internal/config"
	"github.com/albapepper/skyvibes/internal/notifications"

	_ "github.com/albapepper/skyvibes/docs" // swagger docs
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	defer appCache.Close()
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Optional in-process schedule
	if cfg.Schedule != "" {
		sched := notifications.NewScheduler(cfg.Schedule, cfg.Timezone, a.Pipeline, logger)
		if err := sched.Start(ctx); err != nil {
			logger.Error("Failed to start scheduler", "error", err)
			os.Exit(1)
		}
		logger.Info("Scheduled notifications enabled", "schedule", cfg.Schedule, "next", sched.NextRun())
	} else {
		logger.Info("Scheduled notifications disabled (no NOTIFY_SCHEDULE)")
	}

	router := api.NewRouter(handler.Deps{
		Runner:   a.Pipeline,
		Devices:  a.Store,
		Weather:  a.Weather,
		Pusher:   a.Sender,
		Cache:    appCache,
		DBHealth: a.DBHealth,
		Logger:   logger,
	}, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// A trigger request waits for a full run.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting SkyVibes API",
			"addr", addr,
			"environment", cfg.Environment,
			"store", cfg.DeviceStore,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
