// Package main is the entry point for the retailpos background worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"retailpos/internal/app"
	"retailpos/internal/config"
	"retailpos/internal/core/idempotency"
	"retailpos/internal/domain/auth"
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

	if cfg.StorageDriver != config.DriverPostgres {
		log.Fatal("the worker only runs against STORAGE_DRIVER=postgres")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Info("starting retailpos worker")

	storage, err := app.PostgresStorage(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer storage.Close()

	services := app.NewServices(storage, cfg, app.ServiceOptions{})
	worker := NewCleanupWorker(storage.Idempotency, services.Auth, cfg, log)
	worker.statsFn = storage.Pool.LogStats

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// CleanupWorker periodically purges expired idempotency keys and ended sessions.
type CleanupWorker struct {
	keys      idempotency.Store
	sessions  *auth.Service
	interval  time.Duration
	retention time.Duration
	log       *logger.Logger
	statsFn   func(ctx context.Context)
}

func NewCleanupWorker(keys idempotency.Store, sessions *auth.Service, cfg config.Config, log *logger.Logger) *CleanupWorker {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &CleanupWorker{
		keys:      keys,
		sessions:  sessions,
		interval:  interval,
		retention: cfg.SessionRetention,
		log:       log.WithComponent("cleanup"),
	}
}

// Run performs one pass immediately and then one per interval until ctx ends.
func (w *CleanupWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *CleanupWorker) runOnce(ctx context.Context) {
	removed, err := w.keys.CleanupExpired(ctx, time.Now().UTC())
	if err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
	} else if removed > 0 {
		w.log.Infow("expired idempotency keys removed", "count", removed)
	}

	sessions, err := w.sessions.CleanupSessions(ctx, w.retention)
	if err != nil {
		w.log.Errorw("session cleanup failed", "error", err)
	} else if sessions > 0 {
		w.log.Infow("ended sessions removed", "count", sessions)
	}

	if w.statsFn != nil {
		w.statsFn(ctx)
	}
}
