// Package invoice turns a cart into a committed sale: numbered invoice,
// priced items, stock deductions and movements in one transaction.
package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
)

// Invoice is an immutable sale record.
type Invoice struct {
	ID            id.ID        `db:"id" json:"id"`
	TenantID      id.ID        `db:"tenant_id" json:"tenantId"`
	LocationID    id.ID        `db:"location_id" json:"locationId"`
	LocationName  string       `db:"location_name" json:"locationName,omitempty"`
	InvoiceNumber string       `db:"invoice_number" json:"invoiceNumber"`
	CustomerName  *string      `db:"customer_name" json:"customerName,omitempty"`
	TotalAmount   types.Money  `db:"total_amount" json:"totalAmount"`
	TaxAmount     types.Money  `db:"tax_amount" json:"taxAmount"`
	ChangeAmount  *types.Money `db:"change_amount" json:"changeAmount,omitempty"`
	CreatedBy     *id.ID       `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"createdAt"`

	Items []Item `db:"-" json:"items,omitempty"`
}

// Item is one priced line of an invoice.
type Item struct {
	ID              id.ID           `db:"id" json:"id"`
	InvoiceID       id.ID           `db:"invoice_id" json:"invoiceId"`
	VariantID       id.ID           `db:"variant_id" json:"variantId"`
	Quantity        int64           `db:"quantity" json:"quantity"`
	UnitPrice       types.Money     `db:"unit_price" json:"unitPrice"`
	CostPrice       types.Money     `db:"cost_price" json:"costPrice"`
	OriginalPrice   types.Money     `db:"original_price" json:"originalPrice"`
	DiscountPercent decimal.Decimal `db:"discount_percent" json:"discountPercent"`
	Subtotal        types.Money     `db:"subtotal" json:"subtotal"`

	// Read model fields, filled by joined queries.
	ProductID   id.ID  `db:"product_id" json:"productId"`
	ProductName string `db:"product_name" json:"productName"`
	VariantName string `db:"variant_name" json:"variantName"`
}

// ItemsTotal is the sum of item subtotals.
func (inv *Invoice) ItemsTotal() types.Money {
	total := types.Zero()
	for _, it := range inv.Items {
		total = total.Add(it.Subtotal)
	}
	return total
}

// Reconciles reports whether total_amount equals item subtotals plus tax.
func (inv *Invoice) Reconciles() bool {
	return inv.TotalAmount.Equal(inv.ItemsTotal().Add(inv.TaxAmount))
}

// LineRequest is one cart line.
type LineRequest struct {
	VariantID id.ID
	Quantity  int64
}

// CreateRequest is a cart submitted for sale.
// Zero TenantID/LocationID default to the caller's bound scope.
type CreateRequest struct {
	TenantID     id.ID
	LocationID   id.ID
	Items        []LineRequest
	TaxAmount    *types.Money
	ChangeAmount *types.Money
	CustomerName string
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	TenantID   id.ID
	LocationID *id.ID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// Summary aggregates invoices matched by a ListFilter.
type Summary struct {
	InvoiceCount int         `db:"invoice_count"`
	Revenue      types.Money `db:"revenue"`
	Cost         types.Money `db:"cost"`
	Gross        types.Money `db:"gross"`
}

// ProfitReport is revenue against cost of goods for a period.
type ProfitReport struct {
	From         *time.Time  `json:"from,omitempty"`
	To           *time.Time  `json:"to,omitempty"`
	Revenue      types.Money `json:"totalRevenue"`
	Cost         types.Money `json:"totalCost"`
	Profit       types.Money `json:"profit"`
	InvoiceCount int         `json:"invoiceCount"`
}

// DailySales is the takings of one calendar day.
type DailySales struct {
	Date         string      `json:"date"`
	LocationID   *id.ID      `json:"locationId,omitempty"`
	TotalRevenue types.Money `json:"totalRevenue"`
	InvoiceCount int         `json:"totalInvoices"`
}
