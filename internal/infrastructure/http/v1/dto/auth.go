// Package dto provides data transfer objects for HTTP API.
package dto

import (
	"retailpos/internal/core/id"
	"retailpos/internal/core/security"
	"retailpos/internal/domain/auth"
)

// --- Request DTOs ---

// LoginRequest for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ToCredentials converts to domain credentials.
func (r *LoginRequest) ToCredentials() auth.Credentials {
	return auth.Credentials{
		Email:    r.Email,
		Password: r.Password,
	}
}

// SwitchContextRequest selects the tenant/location a super admin works in.
// An empty body clears the selection.
type SwitchContextRequest struct {
	TenantID   *id.ID `json:"tenantId"`
	LocationID *id.ID `json:"locationId"`
}

// CreateUserRequest for creating a user in the caller's tenant.
type CreateUserRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	Name       string `json:"name"`
	Role       string `json:"role" binding:"required"`
	TenantID   id.ID  `json:"tenantId"`
	LocationID id.ID  `json:"locationId"`
}

// ToDomain converts to the domain request.
func (r *CreateUserRequest) ToDomain() auth.CreateUserRequest {
	return auth.CreateUserRequest{
		Email:      r.Email,
		Password:   r.Password,
		Name:       r.Name,
		Role:       security.Role(r.Role),
		TenantID:   r.TenantID,
		LocationID: r.LocationID,
	}
}

// UpdateUserRequest for PUT /users/:id. Omitted fields stay unchanged.
type UpdateUserRequest struct {
	Email      *string `json:"email" binding:"omitempty,email"`
	Name       *string `json:"name"`
	LocationID *id.ID  `json:"locationId"`
}

// ToDomain converts to the domain request.
func (r *UpdateUserRequest) ToDomain() auth.UpdateUserRequest {
	return auth.UpdateUserRequest{
		Email:      r.Email,
		Name:       r.Name,
		LocationID: r.LocationID,
	}
}
