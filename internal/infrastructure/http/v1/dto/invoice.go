package dto

import (
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/invoice"
)

// InvoiceLine is one cart line.
type InvoiceLine struct {
	VariantID id.ID `json:"variantId"`
	Quantity  int64 `json:"quantity"`
}

// CreateInvoiceRequest is a checkout.
type CreateInvoiceRequest struct {
	TenantID     id.ID         `json:"tenantId"`
	LocationID   id.ID         `json:"locationId"`
	Items        []InvoiceLine `json:"items"`
	TaxAmount    *types.Money  `json:"taxAmount"`
	ChangeAmount *types.Money  `json:"changeAmount"`
	CustomerName string        `json:"customerName"`
}

// ToDomain converts to the domain request.
func (r *CreateInvoiceRequest) ToDomain() invoice.CreateRequest {
	lines := make([]invoice.LineRequest, len(r.Items))
	for i, it := range r.Items {
		lines[i] = invoice.LineRequest{VariantID: it.VariantID, Quantity: it.Quantity}
	}
	return invoice.CreateRequest{
		TenantID:     r.TenantID,
		LocationID:   r.LocationID,
		Items:        lines,
		TaxAmount:    r.TaxAmount,
		ChangeAmount: r.ChangeAmount,
		CustomerName: r.CustomerName,
	}
}
