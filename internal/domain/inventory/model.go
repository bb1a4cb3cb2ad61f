// Package inventory is the stock ledger: per-(location, variant) quantity and
// price state plus the append-only movement log.
package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
)

// MovementType distinguishes additions from deductions.
type MovementType string

const (
	MovementStockIn  MovementType = "stock_in"
	MovementStockOut MovementType = "stock_out"
)

// DefaultLowStockThreshold is the reporting threshold below which an item is
// flagged as low stock.
const DefaultLowStockThreshold int64 = 10

// Inventory is the stock record of one variant at one location.
type Inventory struct {
	ID           id.ID       `db:"id" json:"id"`
	TenantID     id.ID       `db:"tenant_id" json:"tenantId"`
	LocationID   id.ID       `db:"location_id" json:"locationId"`
	VariantID    id.ID       `db:"variant_id" json:"variantId"`
	Quantity     int64       `db:"quantity" json:"quantity"`
	CostPrice    types.Money `db:"cost_price" json:"costPrice"`
	SellingPrice types.Money `db:"selling_price" json:"sellingPrice"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`
}

// StockMovement is one immutable change of an inventory quantity.
type StockMovement struct {
	ID               id.ID        `db:"id" json:"id"`
	TenantID         id.ID        `db:"tenant_id" json:"tenantId"`
	LocationID       id.ID        `db:"location_id" json:"locationId"`
	VariantID        id.ID        `db:"variant_id" json:"variantId"`
	MovementType     MovementType `db:"movement_type" json:"movementType"`
	Quantity         int64        `db:"quantity" json:"quantity"`
	UnitCostPrice    types.Money  `db:"unit_cost_price" json:"unitCostPrice"`
	UnitSellingPrice types.Money  `db:"unit_selling_price" json:"unitSellingPrice"`
	Supplier         *string      `db:"supplier" json:"supplier,omitempty"`
	ReferenceID      *id.ID       `db:"reference_id" json:"referenceId,omitempty"`
	QuantityBefore   int64        `db:"quantity_before" json:"quantityBefore"`
	QuantityAfter    int64        `db:"quantity_after" json:"quantityAfter"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
}

// Consistent reports whether the before/after snapshot matches the delta.
func (m StockMovement) Consistent() bool {
	switch m.MovementType {
	case MovementStockIn:
		return m.QuantityAfter == m.QuantityBefore+m.Quantity
	case MovementStockOut:
		return m.QuantityAfter == m.QuantityBefore-m.Quantity && m.QuantityAfter >= 0
	}
	return false
}

// VariantInfo is the catalog view of a variant needed for stock and pricing.
type VariantInfo struct {
	VariantID   id.ID           `db:"variant_id" json:"variantId"`
	ProductID   id.ID           `db:"product_id" json:"productId"`
	TenantID    id.ID           `db:"tenant_id" json:"tenantId"`
	ProductName string          `db:"product_name" json:"productName"`
	VariantName string          `db:"variant_name" json:"variantName"`
	Category    string          `db:"category" json:"category"`
	ProductCode *string         `db:"product_code" json:"productCode,omitempty"`
	Discount    decimal.Decimal `db:"discount" json:"discount"`
}

// StockCheck is the availability view of one (location, variant).
type StockCheck struct {
	Available       bool            `json:"available"`
	Quantity        int64           `json:"quantity"`
	CostPrice       types.Money     `json:"costPrice"`
	SellingPrice    types.Money     `json:"sellingPrice"`
	Discount        decimal.Decimal `json:"discount"`
	DiscountedPrice types.Money     `json:"discountedPrice"`
}

// StockInRequest adds stock at a location.
type StockInRequest struct {
	TenantID     id.ID
	LocationID   id.ID
	VariantID    id.ID
	Quantity     int64
	CostPrice    types.Money
	SellingPrice types.Money
	Supplier     string
}

// DeductRequest removes stock at a location.
type DeductRequest struct {
	TenantID    id.ID
	LocationID  id.ID
	VariantID   id.ID
	Quantity    int64
	ReferenceID *id.ID
}

// MovementFilter narrows GetMovements.
type MovementFilter struct {
	LocationID id.ID
	VariantID  *id.ID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// StockFilter narrows stock listings.
type StockFilter struct {
	TenantID   id.ID
	LocationID *id.ID
	ProductID  *id.ID
	Category   string
	Search     string
}

// StockLine is a denormalized inventory row joined with catalog names.
type StockLine struct {
	InventoryID  id.ID       `db:"inventory_id" json:"inventoryId"`
	LocationID   id.ID       `db:"location_id" json:"locationId"`
	LocationName string      `db:"location_name" json:"locationName"`
	ProductID    id.ID       `db:"product_id" json:"productId"`
	ProductName  string      `db:"product_name" json:"productName"`
	Category     string      `db:"category" json:"category"`
	VariantID    id.ID       `db:"variant_id" json:"variantId"`
	VariantName  string      `db:"variant_name" json:"variantName"`
	Quantity     int64       `db:"quantity" json:"quantity"`
	CostPrice    types.Money `db:"cost_price" json:"costPrice"`
	SellingPrice types.Money `db:"selling_price" json:"sellingPrice"`
}

// Value is the stock value at cost.
func (l StockLine) Value() types.Money {
	return l.CostPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// LocationStock is one location's share of a StockStatus.
type LocationStock struct {
	LocationID   id.ID       `json:"locationId"`
	LocationName string      `json:"locationName"`
	Quantity     int64       `json:"quantity"`
	CostPrice    types.Money `json:"costPrice"`
	SellingPrice types.Money `json:"sellingPrice"`
}

// StockStatus aggregates one variant across locations.
type StockStatus struct {
	ProductID     id.ID           `json:"productId"`
	ProductName   string          `json:"productName"`
	Category      string          `json:"category"`
	VariantID     id.ID           `json:"variantId"`
	VariantName   string          `json:"variantName"`
	TotalQuantity int64           `json:"totalQuantity"`
	Locations     []LocationStock `json:"locations"`
}

// StockReport summarizes one location.
type StockReport struct {
	LocationID        id.ID       `json:"locationId"`
	TotalItems        int         `json:"totalItems"`
	TotalQuantity     int64       `json:"totalQuantity"`
	TotalValue        types.Money `json:"totalValue"`
	LowStockThreshold int64       `json:"lowStockThreshold"`
	LowStockItems     []StockLine `json:"lowStockItems"`
	Items             []StockLine `json:"items"`
}
