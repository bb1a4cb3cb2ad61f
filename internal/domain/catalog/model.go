// Package catalog manages tenants, their locations and the product catalog.
package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/pricing"
)

// SubscriptionStatus of a tenant.
type SubscriptionStatus string

const (
	StatusTrial     SubscriptionStatus = "trial"
	StatusActive    SubscriptionStatus = "active"
	StatusSuspended SubscriptionStatus = "suspended"
)

// Valid reports whether s is a known status.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusSuspended:
		return true
	}
	return false
}

// Tenant is the isolation root: a store account.
type Tenant struct {
	ID                 id.ID              `db:"id" json:"id"`
	Name               string             `db:"name" json:"name"`
	SubscriptionStatus SubscriptionStatus `db:"subscription_status" json:"subscriptionStatus"`
	CreatedAt          time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updatedAt"`
}

// Location is a branch of a tenant.
type Location struct {
	ID        id.ID     `db:"id" json:"id"`
	TenantID  id.ID     `db:"tenant_id" json:"tenantId"`
	Name      string    `db:"name" json:"name"`
	Address   *string   `db:"address" json:"address,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Product groups variants and carries the discount applied to all of them.
type Product struct {
	ID          id.ID           `db:"id" json:"id"`
	TenantID    id.ID           `db:"tenant_id" json:"tenantId"`
	Name        string          `db:"name" json:"name"`
	Category    string          `db:"category" json:"category"`
	ProductCode *string         `db:"product_code" json:"productCode,omitempty"`
	Discount    decimal.Decimal `db:"discount" json:"discount"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`

	Variants []Variant `db:"-" json:"variants"`
}

// Variant is a sellable variation of a product, unique by name within it.
type Variant struct {
	ID          id.ID     `db:"id" json:"id"`
	ProductID   id.ID     `db:"product_id" json:"productId"`
	VariantName string    `db:"variant_name" json:"variantName"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Validate checks the product header.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("product name is required").WithDetail("field", "name")
	}
	if strings.TrimSpace(p.Category) == "" {
		return apperror.NewValidation("category is required").WithDetail("field", "category")
	}
	return pricing.ValidateDiscount(p.Discount)
}

// SignupRequest registers a new tenant and its first store admin.
type SignupRequest struct {
	TenantName    string
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// TenantUpdate changes a tenant. Nil fields are left untouched.
type TenantUpdate struct {
	Name   *string
	Status *SubscriptionStatus
}

// LocationRequest creates or replaces a location's attributes.
type LocationRequest struct {
	TenantID id.ID
	Name     string
	Address  string
	Phone    string
}

// ProductRequest creates a product with its initial variants.
type ProductRequest struct {
	TenantID    id.ID
	Name        string
	Category    string
	ProductCode string
	Discount    decimal.Decimal
	Variants    []string
}

// ProductUpdate changes a product. Nil fields are left untouched.
type ProductUpdate struct {
	Name        *string
	Category    *string
	ProductCode *string
	Discount    *decimal.Decimal
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	TenantID id.ID
	Category string
	// Search matches product name, product code or variant name.
	Search string
	Limit  int
	Offset int
}

// TenantFilter narrows tenant listings.
type TenantFilter struct {
	Status SubscriptionStatus
	Search string
	Limit  int
	Offset int
}

// SystemOverview is the super admin dashboard.
type SystemOverview struct {
	Tenants          int         `db:"tenants" json:"totalTenants"`
	Locations        int         `db:"locations" json:"totalLocations"`
	Users            int         `db:"users" json:"totalUsers"`
	Invoices         int         `db:"invoices" json:"totalInvoices"`
	RecentInvoices   int         `db:"recent_invoices" json:"recentInvoices"`
	RecentRevenue    types.Money `db:"recent_revenue" json:"recentRevenue"`
	RecentWindowDays int         `db:"-" json:"recentWindowDays"`
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
