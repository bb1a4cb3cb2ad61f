// Package app assembles storage backends and domain services for the binaries.
package app

import (
	"context"
	"fmt"

	"retailpos/internal/config"
	"retailpos/internal/core/idempotency"
	"retailpos/internal/core/numerator"
	"retailpos/internal/core/security"
	"retailpos/internal/core/tx"
	"retailpos/internal/domain/audit"
	"retailpos/internal/domain/auth"
	"retailpos/internal/domain/catalog"
	"retailpos/internal/domain/inventory"
	"retailpos/internal/domain/invoice"
	infranumerator "retailpos/internal/infrastructure/numerator"
	"retailpos/internal/infrastructure/storage/memory"
	"retailpos/internal/infrastructure/storage/postgres"
	"retailpos/internal/infrastructure/storage/postgres/auth_repo"
	"retailpos/internal/infrastructure/storage/postgres/catalog_repo"
	"retailpos/internal/infrastructure/storage/postgres/inventory_repo"
	"retailpos/internal/infrastructure/storage/postgres/invoice_repo"
	"retailpos/pkg/logger"
)

// LocationStore is what both backends provide for locations: CRUD, the
// tenant directory used by auth and the guard, and the system overview.
type LocationStore interface {
	catalog.LocationRepository
	catalog.OverviewReader
	auth.Directory
}

// Readiness reports whether the backend can serve requests.
type Readiness interface {
	Ready(ctx context.Context) error
}

// Storage bundles one backend's repositories.
type Storage struct {
	Driver    string
	TxManager tx.Manager

	Users     auth.UserRepository
	Sessions  auth.SessionRepository
	Tenants   catalog.TenantRepository
	Locations LocationStore
	Products  catalog.ProductRepository
	Inventory inventory.Repository
	Invoices  invoice.Repository
	Numbers   numerator.Generator
	Audit     audit.Recorder

	Idempotency idempotency.Store

	// Readiness is nil for backends that are always ready.
	Readiness Readiness
	// Pool is set for the postgres backend only.
	Pool *postgres.Pool

	closeFn func()
}

// Close releases backend resources.
func (s *Storage) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// MemoryStorage wires the in-memory backend.
func MemoryStorage(cfg config.Config) *Storage {
	store := memory.New()
	return &Storage{
		Driver:      config.DriverMemory,
		TxManager:   store,
		Users:       store.Users(),
		Sessions:    store.Sessions(),
		Tenants:     store.Tenants(),
		Locations:   store.Locations(),
		Products:    store.Products(),
		Inventory:   store.Inventory(),
		Invoices:    store.Invoices(),
		Numbers:     store.Sequences(),
		Audit:       store.Audit(),
		Idempotency: store.Idempotency(cfg.IdempotencyTTL),
	}
}

// PostgresStorage connects to PostgreSQL, applies migrations and wires the
// pgx repositories.
func PostgresStorage(ctx context.Context, cfg config.Config) (*Storage, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	if cfg.DBMaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.DBMaxConns)
	}
	if cfg.DBMinConns > 0 {
		poolCfg.MinConns = int32(cfg.DBMinConns)
	}
	poolCfg.ApplicationName = cfg.ServiceName

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	txm := postgres.NewTxManager(pool)
	recorder, err := postgres.NewAuditRecorder(txm)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit recorder: %w", err)
	}
	numbers := infranumerator.New(func(ctx context.Context) infranumerator.Querier {
		return txm.GetQuerier(ctx)
	})

	return &Storage{
		Driver:      config.DriverPostgres,
		TxManager:   txm,
		Users:       auth_repo.NewUserRepo(txm),
		Sessions:    auth_repo.NewSessionRepo(txm),
		Tenants:     catalog_repo.NewTenantRepo(txm),
		Locations:   catalog_repo.NewLocationRepo(txm),
		Products:    catalog_repo.NewProductRepo(txm),
		Inventory:   inventory_repo.New(txm),
		Invoices:    invoice_repo.New(txm),
		Numbers:     numbers,
		Audit:       recorder,
		Idempotency: postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL),
		Readiness:   pool,
		Pool:        pool,
		closeFn:     pool.Close,
	}, nil
}

// OpenStorage picks the backend named by cfg.StorageDriver.
func OpenStorage(ctx context.Context, cfg config.Config) (*Storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		logger.Warn(ctx, "using in-memory storage, data is lost on restart")
		return MemoryStorage(cfg), nil
	case config.DriverPostgres:
		return PostgresStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Services are the domain services built on one Storage.
type Services struct {
	JWT       *auth.JWTService
	Auth      *auth.Service
	Catalog   *catalog.Service
	Inventory *inventory.Service
	Invoice   *invoice.Service
}

// ServiceOptions carries the tunables that do not come from storage.
type ServiceOptions struct {
	Auth auth.ServiceConfig
}

// NewServices builds every domain service.
func NewServices(st *Storage, cfg config.Config, opts ServiceOptions) *Services {
	jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
	if cfg.JWTTTL > 0 {
		jwtCfg.AccessTokenTTL = cfg.JWTTTL
	}
	jwtService := auth.NewJWTService(jwtCfg)

	authCfg := opts.Auth
	if authCfg == (auth.ServiceConfig{}) {
		authCfg = auth.DefaultServiceConfig()
	}
	authService := auth.NewService(st.Users, st.Sessions, st.Locations, st.TxManager, jwtService, authCfg)

	guard := security.NewGuard(st.Locations)
	ledger := inventory.NewLedger(st.Inventory, st.Products, st.TxManager)

	threshold := cfg.LowStockThreshold
	if threshold <= 0 {
		threshold = inventory.DefaultLowStockThreshold
	}

	invoiceCfg := invoice.DefaultConfig()
	if cfg.TxLockTimeout > 0 {
		invoiceCfg.LockTimeout = cfg.TxLockTimeout
	}
	if cfg.TxStatementTimeout > 0 {
		invoiceCfg.StatementTimeout = cfg.TxStatementTimeout
	}
	if cfg.SaleMaxAttempts > 0 {
		invoiceCfg.MaxAttempts = cfg.SaleMaxAttempts
	}
	if cfg.SaleRetryBackoff > 0 {
		invoiceCfg.RetryBackoff = cfg.SaleRetryBackoff
	}

	return &Services{
		JWT:  jwtService,
		Auth: authService,
		Catalog: catalog.NewService(
			st.Tenants, st.Locations, st.Products, st.Locations, authService, st.TxManager, st.Audit,
		),
		Inventory: inventory.NewService(ledger, guard, st.Audit, st.TxManager, threshold),
		Invoice:   invoice.NewService(st.Invoices, ledger, st.Numbers, guard, st.TxManager, st.Audit, invoiceCfg),
	}
}
