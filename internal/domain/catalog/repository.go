package catalog

import (
	"context"
	"time"

	"retailpos/internal/core/id"
	"retailpos/internal/core/security"
	"retailpos/internal/domain/inventory"
)

// TenantRepository defines tenant storage operations.
type TenantRepository interface {
	Create(ctx context.Context, t *Tenant) error
	// GetByID returns a NotFound AppError for unknown tenants.
	GetByID(ctx context.Context, tenantID id.ID) (*Tenant, error)
	List(ctx context.Context, filter TenantFilter) ([]Tenant, int, error)
	Update(ctx context.Context, t *Tenant) error
	// Delete removes the tenant and everything it owns.
	Delete(ctx context.Context, tenantID id.ID) error
}

// LocationRepository defines location storage operations.
type LocationRepository interface {
	security.LocationDirectory

	Create(ctx context.Context, loc *Location) error
	GetByID(ctx context.Context, locationID id.ID) (*Location, error)
	ListByTenant(ctx context.Context, tenantID id.ID) ([]Location, error)
	Update(ctx context.Context, loc *Location) error
	// Delete removes the location with its inventory, movements and invoices.
	Delete(ctx context.Context, locationID id.ID) error
}

// ProductRepository defines product and variant storage operations.
// It also serves the stock ledger's catalog lookups.
type ProductRepository interface {
	inventory.Catalog

	Create(ctx context.Context, p *Product) error
	// GetByID returns the product with its variants.
	GetByID(ctx context.Context, productID id.ID) (*Product, error)
	// GetByCode returns the product with the given code within a tenant.
	GetByCode(ctx context.Context, tenantID id.ID, code string) (*Product, error)
	List(ctx context.Context, filter ProductFilter) ([]Product, int, error)
	Update(ctx context.Context, p *Product) error
	// Delete fails with a Conflict AppError when any variant has been sold.
	Delete(ctx context.Context, productID id.ID) error

	CreateVariants(ctx context.Context, variants []Variant) error
	// DeleteVariant fails with a Conflict AppError when the variant has been sold.
	DeleteVariant(ctx context.Context, variantID id.ID) error
}

// OverviewReader aggregates system-wide counters.
type OverviewReader interface {
	Overview(ctx context.Context, since time.Time) (*SystemOverview, error)
}

// AdminProvisioner creates the first store admin of a new tenant.
type AdminProvisioner interface {
	CreateStoreAdmin(ctx context.Context, tenantID id.ID, email, password, name string) (id.ID, error)
}
