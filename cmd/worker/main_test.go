package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"retailpos/internal/app"
	"retailpos/internal/config"
	"retailpos/internal/domain/auth"
	"retailpos/pkg/logger"
)

func TestCleanupWorker_RunOnce(t *testing.T) {
	cfg := config.Config{
		StorageDriver:    config.DriverMemory,
		JWTSecret:        "secret",
		JWTTTL:           time.Hour,
		IdempotencyTTL:   time.Millisecond,
		SessionRetention: time.Hour,
	}
	storage := app.MemoryStorage(cfg)
	services := app.NewServices(storage, cfg, app.ServiceOptions{Auth: auth.ServiceConfig{
		PasswordMinLength: 8,
		BcryptCost:        bcrypt.MinCost,
	}})
	ctx := context.Background()

	_, err := storage.Idempotency.Acquire(ctx, "k1", "u1", "POST /api/v1/invoices", "hash")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	stats := 0
	w := NewCleanupWorker(storage.Idempotency, services.Auth, cfg, logger.NewNop())
	w.statsFn = func(context.Context) { stats++ }
	w.runOnce(ctx)

	assert.Equal(t, 1, stats)
	removed, err := storage.Idempotency.CleanupExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, removed, "expired key should already be gone")
}

func TestNewCleanupWorker_DefaultInterval(t *testing.T) {
	w := NewCleanupWorker(nil, nil, config.Config{}, logger.NewNop())
	assert.Equal(t, 10*time.Minute, w.interval)
}
