// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"retailpos/internal/core/idempotency"
	"retailpos/internal/domain/auth"
	"retailpos/internal/domain/catalog"
	"retailpos/internal/domain/inventory"
	"retailpos/internal/domain/invoice"
	"retailpos/internal/infrastructure/http/v1/handlers"
	"retailpos/internal/infrastructure/http/v1/middleware"
	"retailpos/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// ServiceName names the otel spans of incoming requests
	ServiceName string

	// Logger for request logging
	Logger *logger.Logger

	// Readiness of the storage backend; nil means always ready
	Readiness handlers.ReadinessChecker
	// StorageDriver labels the readiness check
	StorageDriver string

	AuthService      *auth.Service
	CatalogService   *catalog.Service
	InventoryService *inventory.Service
	InvoiceService   *invoice.Service

	// Idempotency backs X-Idempotency-Key on checkout and stock intake;
	// nil disables it
	Idempotency idempotency.Store
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "retailpos"
	}

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger, "/health", "/ready"))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Readiness, cfg.StorageDriver)
	router.GET("/health", healthHandler.Live)
	router.GET("/ready", healthHandler.Ready)

	base := handlers.NewBaseHandler()

	api := router.Group("/api/v1")
	public := api.Group("")

	protected := api.Group("")
	protected.Use(middleware.Auth(cfg.AuthService)) // 1. Validate JWT and session
	protected.Use(middleware.TenantScope())         // 2. Reject query params outside scope

	idempotent := middleware.Idempotency(cfg.Idempotency)

	handlers.NewAuthHandler(base, cfg.AuthService).RegisterRoutes(public, protected)
	handlers.NewCatalogHandler(base, cfg.CatalogService).RegisterRoutes(public, protected)
	handlers.NewInventoryHandler(base, cfg.InventoryService).RegisterRoutes(protected, idempotent)
	handlers.NewInvoiceHandler(base, cfg.InvoiceService).RegisterRoutes(protected, idempotent)

	return router
}
