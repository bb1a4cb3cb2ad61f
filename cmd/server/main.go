// Package main is the entry point for the retailpos API server.
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

	"github.com/gin-gonic/gin"

	"retailpos/internal/app"
	"retailpos/internal/config"
	v1 "retailpos/internal/infrastructure/http/v1"
	"retailpos/internal/infrastructure/telemetry"
	"retailpos/pkg/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting retailpos server", "storage", cfg.StorageDriver, "env", cfg.Env)

	// --- Telemetry ---
	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OtelEnabled,
		Endpoint:    cfg.OtelEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
	})
	if err != nil {
		log.Fatalw("failed to initialize telemetry", "error", err)
	}

	// --- Storage ---
	storage, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer storage.Close()

	services := app.NewServices(storage, cfg, app.ServiceOptions{})

	// Memory mode has no separate seeding step.
	if cfg.StorageDriver == config.DriverMemory || cfg.SuperAdminEmail != "" {
		if err := app.Seed(ctx, services, cfg); err != nil {
			log.Fatalw("failed to seed", "error", err)
		}
	}

	// --- Router ---
	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := v1.NewRouter(v1.RouterConfig{
		ServiceName:      cfg.ServiceName,
		Logger:           log,
		Readiness:        storage.Readiness,
		StorageDriver:    storage.Driver,
		AuthService:      services.Auth,
		CatalogService:   services.Catalog,
		InventoryService: services.Inventory,
		InvoiceService:   services.Invoice,
		Idempotency:      storage.Idempotency,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Warnw("telemetry shutdown", "error", err)
	}

	log.Info("server stopped")
}
