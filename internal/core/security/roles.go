// Package security implements the role hierarchy and the tenant/location
// scope checks applied to every stock and invoice operation.
package security

import (
	"fmt"

	"retailpos/internal/core/apperror"
)

// Role is a user's position in the store hierarchy.
type Role string

const (
	RoleSuperAdmin   Role = "super_admin"
	RoleStoreAdmin   Role = "store_admin"
	RoleLocationUser Role = "location_user"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSuperAdmin, RoleStoreAdmin, RoleLocationUser:
		return r, nil
	}
	return "", apperror.NewValidation(fmt.Sprintf("unknown role %q", s)).WithDetail("field", "role")
}

// rank orders roles from least to most privileged.
func (r Role) rank() int {
	switch r {
	case RoleSuperAdmin:
		return 3
	case RoleStoreAdmin:
		return 2
	case RoleLocationUser:
		return 1
	}
	return 0
}

// AtLeast reports whether r is as privileged as min.
func (r Role) AtLeast(min Role) bool {
	return r.rank() >= min.rank() && r.rank() > 0
}

// BindsTenant reports whether the role is tied to exactly one tenant.
func (r Role) BindsTenant() bool {
	return r == RoleStoreAdmin || r == RoleLocationUser
}

// BindsLocation reports whether the role is tied to exactly one location.
func (r Role) BindsLocation() bool {
	return r == RoleLocationUser
}
