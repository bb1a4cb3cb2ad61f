package invoice

import (
	"context"

	"retailpos/internal/core/id"
	"retailpos/internal/domain/inventory"
)

// Repository defines invoice storage operations.
type Repository interface {
	// Create persists the header and all items.
	Create(ctx context.Context, inv *Invoice) error

	// GetByID returns the invoice with hydrated items or a NotFound AppError.
	GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error)

	// List returns headers newest first and the total match count.
	List(ctx context.Context, filter ListFilter) ([]Invoice, int, error)

	// Summarize aggregates the invoices matched by filter (paging ignored).
	Summarize(ctx context.Context, filter ListFilter) (*Summary, error)
}

// StockLedger is the part of the stock ledger a sale needs.
type StockLedger interface {
	LockForSale(ctx context.Context, locationID id.ID, variantIDs []id.ID) (map[id.ID]*inventory.StockCheck, error)
	DeductStock(ctx context.Context, req inventory.DeductRequest) (*inventory.Inventory, error)
}

var _ StockLedger = (*inventory.Ledger)(nil)
