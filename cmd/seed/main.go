// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"fmt"
	"os"

	"retailpos/internal/app"
	"retailpos/internal/config"
	"retailpos/pkg/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if cfg.StorageDriver != config.DriverPostgres {
		log.Fatal("seeding needs STORAGE_DRIVER=postgres; the memory backend seeds itself on server start")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	if cfg.SuperAdminEmail == "" {
		cfg.SuperAdminEmail = "admin@retailpos.local"
	}
	if cfg.SuperAdminPassword == "" {
		cfg.SuperAdminPassword = "Admin123!"
		log.Warn("SUPER_ADMIN_PASSWORD not set, using the development default")
	}

	ctx := logger.WithLogger(context.Background(), log)

	storage, err := app.PostgresStorage(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer storage.Close()

	log.Info("connected to database")

	services := app.NewServices(storage, cfg, app.ServiceOptions{})
	if err := app.Seed(ctx, services, cfg); err != nil {
		log.Fatalw("seeding failed", "error", err)
	}

	log.Info("seeding completed successfully")
}
