package security

import (
	"context"
	"fmt"

	"retailpos/internal/core/apperror"
	appctx "retailpos/internal/core/context"
	"retailpos/internal/core/id"
)

// Scope is the data boundary of the current request.
//
// For store admins and location users TenantID/LocationID are the bound
// values from the user record. For a super admin they are whatever the
// session selected via switch-context and may be Nil.
type Scope struct {
	UserID     id.ID
	Role       Role
	TenantID   id.ID
	LocationID id.ID
}

// ScopeFromPrincipal builds a Scope from the authenticated principal.
func ScopeFromPrincipal(p *appctx.Principal) (*Scope, error) {
	if p == nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	role, err := ParseRole(p.Role)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid role in credentials")
	}
	return &Scope{
		UserID:     p.UserID,
		Role:       role,
		TenantID:   p.TenantID,
		LocationID: p.LocationID,
	}, nil
}

// IsSuperAdmin reports whether tenant isolation checks are bypassed.
func (s *Scope) IsSuperAdmin() bool {
	return s.Role == RoleSuperAdmin
}

// RequireRole fails with ForbiddenError unless the caller holds at least min.
func (s *Scope) RequireRole(min Role) error {
	if !s.Role.AtLeast(min) {
		return apperror.NewForbidden(fmt.Sprintf("role %s or higher required", min)).
			WithDetail("role", s.Role)
	}
	return nil
}

// ResolveTenant returns the tenant the request targets.
// An explicit tenant that disagrees with a bound tenant is forbidden.
func (s *Scope) ResolveTenant(requested id.ID) (id.ID, error) {
	if s.IsSuperAdmin() {
		if !id.IsNil(requested) {
			return requested, nil
		}
		if id.IsNil(s.TenantID) {
			return id.Nil(), apperror.NewValidation("no tenant selected; switch context first").
				WithDetail("field", "tenant_id")
		}
		return s.TenantID, nil
	}
	if id.IsNil(s.TenantID) {
		return id.Nil(), apperror.NewForbidden("user is not bound to a tenant")
	}
	if !id.IsNil(requested) && requested != s.TenantID {
		return id.Nil(), apperror.NewForbidden("tenant is outside of your scope").
			WithDetail("tenant_id", requested)
	}
	return s.TenantID, nil
}

// ResolveLocation returns the location the request targets, without
// checking that it belongs to the tenant (see Guard).
func (s *Scope) ResolveLocation(requested id.ID) (id.ID, error) {
	if s.Role.BindsLocation() {
		if id.IsNil(s.LocationID) {
			return id.Nil(), apperror.NewForbidden("user is not bound to a location")
		}
		if !id.IsNil(requested) && requested != s.LocationID {
			return id.Nil(), apperror.NewForbidden("location is outside of your scope").
				WithDetail("location_id", requested)
		}
		return s.LocationID, nil
	}
	if !id.IsNil(requested) {
		return requested, nil
	}
	if id.IsNil(s.LocationID) {
		return id.Nil(), apperror.NewValidation("location is required").WithDetail("field", "location_id")
	}
	return s.LocationID, nil
}

// LocationFilter returns the location a read must be restricted to.
// Nil means all locations of the tenant.
func (s *Scope) LocationFilter(requested id.ID) (id.ID, error) {
	if s.Role.BindsLocation() {
		return s.ResolveLocation(requested)
	}
	return requested, nil
}

// --- Context-based scope access ---

type scopeKey struct{}

// WithScope adds Scope to context.
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// GetScope returns the request Scope, deriving it from the principal when
// the middleware did not set one explicitly.
func GetScope(ctx context.Context) (*Scope, error) {
	if v, ok := ctx.Value(scopeKey{}).(*Scope); ok && v != nil {
		return v, nil
	}
	return ScopeFromPrincipal(appctx.GetPrincipal(ctx))
}
