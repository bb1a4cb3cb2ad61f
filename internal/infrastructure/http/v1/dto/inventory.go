package dto

import (
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/inventory"
)

// StockInRequest receives stock at a location. Zero tenant/location ids
// default to the caller's scope.
type StockInRequest struct {
	TenantID     id.ID       `json:"tenantId"`
	LocationID   id.ID       `json:"locationId"`
	VariantID    id.ID       `json:"variantId"`
	Quantity     int64       `json:"quantity"`
	CostPrice    types.Money `json:"costPrice"`
	SellingPrice types.Money `json:"sellingPrice"`
	Supplier     string      `json:"supplier"`
}

// ToDomain converts to the domain request.
func (r *StockInRequest) ToDomain() inventory.StockInRequest {
	return inventory.StockInRequest{
		TenantID:     r.TenantID,
		LocationID:   r.LocationID,
		VariantID:    r.VariantID,
		Quantity:     r.Quantity,
		CostPrice:    r.CostPrice,
		SellingPrice: r.SellingPrice,
		Supplier:     r.Supplier,
	}
}
