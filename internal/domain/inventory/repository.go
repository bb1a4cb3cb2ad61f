package inventory

import (
	"context"

	"retailpos/internal/core/id"
)

// Repository defines storage operations for the stock ledger.
// Write methods must run inside the transaction carried by ctx.
type Repository interface {
	// Get returns the inventory row or a NotFound AppError.
	Get(ctx context.Context, locationID, variantID id.ID) (*Inventory, error)

	// GetForUpdate returns the row with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, locationID, variantID id.ID) (*Inventory, error)

	// LockMany locks the existing rows for variantIDs in ascending variant order.
	// Missing rows are simply absent from the result.
	LockMany(ctx context.Context, locationID id.ID, variantIDs []id.ID) (map[id.ID]*Inventory, error)

	// Insert creates a row unless one already exists for (location, variant).
	Insert(ctx context.Context, inv *Inventory) (bool, error)

	// Update persists quantity and prices.
	Update(ctx context.Context, inv *Inventory) error

	// CreateMovements appends movements.
	CreateMovements(ctx context.Context, movements []StockMovement) error

	// ListMovements returns movements newest first.
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)

	// ListStock returns inventory rows joined with catalog and location names.
	ListStock(ctx context.Context, filter StockFilter) ([]StockLine, error)
}

// Catalog resolves variants to their product data.
type Catalog interface {
	// GetVariantInfo returns a NotFound AppError for unknown variants.
	GetVariantInfo(ctx context.Context, variantID id.ID) (*VariantInfo, error)

	// GetVariantInfos returns the variants that exist, keyed by id.
	GetVariantInfos(ctx context.Context, variantIDs []id.ID) (map[id.ID]*VariantInfo, error)
}
