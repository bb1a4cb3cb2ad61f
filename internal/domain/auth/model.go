// Package auth provides authentication, user management and sessions.
package auth

import (
	"strings"
	"time"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/core/security"
)

// User represents a system user.
type User struct {
	ID                  id.ID         `db:"id" json:"id"`
	TenantID            *id.ID        `db:"tenant_id" json:"tenantId,omitempty"`
	LocationID          *id.ID        `db:"location_id" json:"locationId,omitempty"`
	Role                security.Role `db:"role" json:"role"`
	Email               string        `db:"email" json:"email"`
	PasswordHash        string        `db:"password_hash" json:"-"`
	Name                string        `db:"name" json:"name,omitempty"`
	IsActive            bool          `db:"is_active" json:"isActive"`
	LastLoginAt         *time.Time    `db:"last_login_at" json:"lastLoginAt,omitempty"`
	FailedLoginAttempts int           `db:"failed_login_attempts" json:"-"`
	LockedUntil         *time.Time    `db:"locked_until" json:"-"`
	CreatedAt           time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time     `db:"updated_at" json:"updatedAt"`
}

// NewUser creates an active user.
func NewUser(email, passwordHash string, role security.Role) *User {
	now := time.Now().UTC()
	return &User{
		ID:           id.New(),
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks that the role and its bindings agree.
func (u *User) Validate() error {
	if u.Email == "" {
		return apperror.NewValidation("email is required").WithDetail("field", "email")
	}
	if !strings.Contains(u.Email, "@") {
		return apperror.NewValidation("email is invalid").WithDetail("field", "email")
	}
	if u.Role.BindsTenant() && (u.TenantID == nil || id.IsNil(*u.TenantID)) {
		return apperror.NewValidation("tenant is required for this role").WithDetail("field", "tenant_id")
	}
	if u.Role.BindsLocation() && (u.LocationID == nil || id.IsNil(*u.LocationID)) {
		return apperror.NewValidation("location is required for this role").WithDetail("field", "location_id")
	}
	if u.Role == security.RoleSuperAdmin && (u.TenantID != nil || u.LocationID != nil) {
		return apperror.NewValidation("super admin cannot be bound to a tenant").WithDetail("field", "role")
	}
	return nil
}

// IsLocked returns true if account is locked.
func (u *User) IsLocked() bool {
	if u.LockedUntil == nil {
		return false
	}
	return time.Now().Before(*u.LockedUntil)
}

// CanLogin checks if user can login.
func (u *User) CanLogin() error {
	if !u.IsActive {
		return apperror.NewForbidden("account is disabled")
	}
	if u.IsLocked() {
		return apperror.NewForbidden("account is temporarily locked")
	}
	return nil
}

// RecordFailedLogin increments failed login counter.
func (u *User) RecordFailedLogin(maxAttempts int, lockDuration time.Duration) {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxAttempts {
		lockUntil := time.Now().Add(lockDuration)
		u.LockedUntil = &lockUntil
	}
}

// RecordSuccessfulLogin resets failed login counter.
func (u *User) RecordSuccessfulLogin() {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	now := time.Now().UTC()
	u.LastLoginAt = &now
}

// Session is a login. For a super admin it also carries the tenant and
// location selected with SwitchContext.
type Session struct {
	ID                 id.ID      `db:"id" json:"id"`
	UserID             id.ID      `db:"user_id" json:"userId"`
	SelectedTenantID   *id.ID     `db:"selected_tenant_id" json:"selectedTenantId,omitempty"`
	SelectedLocationID *id.ID     `db:"selected_location_id" json:"selectedLocationId,omitempty"`
	ExpiresAt          time.Time  `db:"expires_at" json:"expiresAt"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	RevokedAt          *time.Time `db:"revoked_at" json:"-"`
}

// IsValid checks if the session is neither revoked nor expired.
func (s *Session) IsValid(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	TokenType   string    `json:"tokenType"`
	User        *User     `json:"user"`
}

// Credentials for login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateUserRequest creates a user in the caller's scope.
type CreateUserRequest struct {
	Email      string
	Password   string
	Name       string
	Role       security.Role
	TenantID   id.ID
	LocationID id.ID
}

// UpdateUserRequest changes a user profile. Nil fields are left unchanged.
type UpdateUserRequest struct {
	Email      *string
	Name       *string
	LocationID *id.ID
}

// Me is the caller's profile with the effective scope of the session.
type Me struct {
	User               *User  `json:"user"`
	SelectedTenantID   *id.ID `json:"selectedTenantId,omitempty"`
	SelectedLocationID *id.ID `json:"selectedLocationId,omitempty"`
}

// UserFilter for listing users.
type UserFilter struct {
	TenantID   id.ID
	LocationID *id.ID
	Role       security.Role
	Search     string
	Limit      int
	Offset     int
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
