package dto

import (
	"github.com/shopspring/decimal"

	"retailpos/internal/core/id"
	"retailpos/internal/domain/catalog"
)

// --- Tenants ---

// SignupRequest registers a tenant with its first store admin.
type SignupRequest struct {
	TenantName    string `json:"tenantName" binding:"required"`
	AdminEmail    string `json:"adminEmail" binding:"required,email"`
	AdminPassword string `json:"adminPassword" binding:"required"`
	AdminName     string `json:"adminName"`
}

// ToDomain converts to the domain request.
func (r *SignupRequest) ToDomain() catalog.SignupRequest {
	return catalog.SignupRequest{
		TenantName:    r.TenantName,
		AdminEmail:    r.AdminEmail,
		AdminPassword: r.AdminPassword,
		AdminName:     r.AdminName,
	}
}

// SignupResponse is returned by a successful signup.
type SignupResponse struct {
	Tenant      *catalog.Tenant `json:"tenant"`
	AdminUserID string          `json:"adminUserId"`
}

// UpdateTenantRequest patches a tenant.
type UpdateTenantRequest struct {
	Name               *string `json:"name"`
	SubscriptionStatus *string `json:"subscriptionStatus"`
}

// ToDomain converts to the domain update.
func (r *UpdateTenantRequest) ToDomain() catalog.TenantUpdate {
	upd := catalog.TenantUpdate{Name: r.Name}
	if r.SubscriptionStatus != nil {
		status := catalog.SubscriptionStatus(*r.SubscriptionStatus)
		upd.Status = &status
	}
	return upd
}

// --- Locations ---

// LocationRequest creates or replaces a location.
type LocationRequest struct {
	TenantID id.ID  `json:"tenantId"`
	Name     string `json:"name" binding:"required"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
}

// ToDomain converts to the domain request.
func (r *LocationRequest) ToDomain() catalog.LocationRequest {
	return catalog.LocationRequest{
		TenantID: r.TenantID,
		Name:     r.Name,
		Address:  r.Address,
		Phone:    r.Phone,
	}
}

// --- Products ---

// CreateProductRequest creates a product with its variants.
type CreateProductRequest struct {
	TenantID    id.ID           `json:"tenantId"`
	Name        string          `json:"name" binding:"required"`
	Category    string          `json:"category"`
	ProductCode string          `json:"productCode"`
	Discount    decimal.Decimal `json:"discount"`
	Variants    []string        `json:"variants"`
}

// ToDomain converts to the domain request.
func (r *CreateProductRequest) ToDomain() catalog.ProductRequest {
	return catalog.ProductRequest{
		TenantID:    r.TenantID,
		Name:        r.Name,
		Category:    r.Category,
		ProductCode: r.ProductCode,
		Discount:    r.Discount,
		Variants:    r.Variants,
	}
}

// UpdateProductRequest patches a product.
type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Category    *string          `json:"category"`
	ProductCode *string          `json:"productCode"`
	Discount    *decimal.Decimal `json:"discount"`
}

// ToDomain converts to the domain update.
func (r *UpdateProductRequest) ToDomain() catalog.ProductUpdate {
	return catalog.ProductUpdate{
		Name:        r.Name,
		Category:    r.Category,
		ProductCode: r.ProductCode,
		Discount:    r.Discount,
	}
}

// AddVariantRequest adds a variant to a product.
type AddVariantRequest struct {
	VariantName string `json:"variantName" binding:"required"`
}
