package security

import (
	"context"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
)

// LocationDirectory tells the guard which tenant owns a location.
// It returns a NotFound AppError for unknown locations.
type LocationDirectory interface {
	LocationTenant(ctx context.Context, locationID id.ID) (id.ID, error)
}

// Target is a validated (tenant, location) pair.
type Target struct {
	TenantID   id.ID
	LocationID id.ID
}

// Guard resolves request targets against the caller's scope.
type Guard struct {
	locations LocationDirectory
}

// NewGuard creates a Guard.
func NewGuard(locations LocationDirectory) *Guard {
	return &Guard{locations: locations}
}

// Tenant resolves the tenant for a tenant-wide operation.
func (g *Guard) Tenant(ctx context.Context, requested id.ID) (*Scope, id.ID, error) {
	scope, err := GetScope(ctx)
	if err != nil {
		return nil, id.Nil(), err
	}
	tenantID, err := scope.ResolveTenant(requested)
	if err != nil {
		return nil, id.Nil(), err
	}
	return scope, tenantID, nil
}

// Location resolves both tenant and location and verifies that the location
// belongs to the tenant.
func (g *Guard) Location(ctx context.Context, tenantReq, locationReq id.ID) (*Scope, Target, error) {
	scope, tenantID, err := g.Tenant(ctx, tenantReq)
	if err != nil {
		return nil, Target{}, err
	}
	locationID, err := scope.ResolveLocation(locationReq)
	if err != nil {
		return nil, Target{}, err
	}
	if err := g.checkOwnership(ctx, tenantID, locationID); err != nil {
		return nil, Target{}, err
	}
	return scope, Target{TenantID: tenantID, LocationID: locationID}, nil
}

// LocationFilter resolves an optional location filter for tenant-wide reads.
// Location users are always pinned to their own location.
func (g *Guard) LocationFilter(ctx context.Context, tenantReq, locationReq id.ID) (*Scope, Target, error) {
	scope, tenantID, err := g.Tenant(ctx, tenantReq)
	if err != nil {
		return nil, Target{}, err
	}
	locationID, err := scope.LocationFilter(locationReq)
	if err != nil {
		return nil, Target{}, err
	}
	if !id.IsNil(locationID) {
		if err := g.checkOwnership(ctx, tenantID, locationID); err != nil {
			return nil, Target{}, err
		}
	}
	return scope, Target{TenantID: tenantID, LocationID: locationID}, nil
}

func (g *Guard) checkOwnership(ctx context.Context, tenantID, locationID id.ID) error {
	owner, err := g.locations.LocationTenant(ctx, locationID)
	if err != nil {
		return err
	}
	if owner != tenantID {
		return apperror.NewForbidden("location does not belong to tenant").
			WithDetail("location_id", locationID).
			WithDetail("tenant_id", tenantID)
	}
	return nil
}
