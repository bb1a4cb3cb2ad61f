package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/core/security"
	"retailpos/internal/core/tx"
	"retailpos/internal/domain/audit"
	"retailpos/pkg/logger"
)

// overviewWindow is the lookback of the "recent" counters of SystemOverview.
const overviewWindow = 30 * 24 * time.Hour

// Service manages tenants, locations and products within the caller's scope.
type Service struct {
	tenants   TenantRepository
	locations LocationRepository
	products  ProductRepository
	overview  OverviewReader
	admins    AdminProvisioner
	guard     *security.Guard
	txManager tx.Manager
	audit     audit.Recorder
	now       func() time.Time
}

// NewService creates the catalog service.
func NewService(
	tenants TenantRepository,
	locations LocationRepository,
	products ProductRepository,
	overview OverviewReader,
	admins AdminProvisioner,
	txManager tx.Manager,
	recorder audit.Recorder,
) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		tenants:   tenants,
		locations: locations,
		products:  products,
		overview:  overview,
		admins:    admins,
		guard:     security.NewGuard(locations),
		txManager: txManager,
		audit:     recorder,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// --- Tenants ---

// Signup creates a tenant on a trial subscription together with its first
// store admin. It is the only unauthenticated write.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*Tenant, id.ID, error) {
	name := strings.TrimSpace(req.TenantName)
	if name == "" {
		return nil, id.Nil(), apperror.NewValidation("tenant name is required").WithDetail("field", "tenant_name")
	}

	now := s.now()
	tenant := &Tenant{
		ID:                 id.New(),
		Name:               name,
		SubscriptionStatus: StatusTrial,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	var adminID id.ID
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.tenants.Create(ctx, tenant); err != nil {
			return fmt.Errorf("create tenant: %w", err)
		}
		var err error
		adminID, err = s.admins.CreateStoreAdmin(ctx, tenant.ID, req.AdminEmail, req.AdminPassword, req.AdminName)
		return err
	})
	if err != nil {
		return nil, id.Nil(), err
	}

	logger.Info(ctx, "tenant signed up", "tenant_id", tenant.ID, "admin_id", adminID)
	return tenant, adminID, nil
}

// GetTenant returns a tenant in scope.
func (s *Service) GetTenant(ctx context.Context, tenantID id.ID) (*Tenant, error) {
	_, tenantID, err := s.guard.Tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.tenants.GetByID(ctx, tenantID)
}

// ListTenants lists every tenant. Super admin only.
func (s *Service) ListTenants(ctx context.Context, filter TenantFilter) ([]Tenant, int, error) {
	if err := requireRole(ctx, security.RoleSuperAdmin); err != nil {
		return nil, 0, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperror.NewValidation("unknown subscription status").WithDetail("field", "status")
	}
	return s.tenants.List(ctx, filter)
}

// UpdateTenant renames a tenant or changes its subscription. Only a super
// admin may change the subscription status.
func (s *Service) UpdateTenant(ctx context.Context, tenantID id.ID, upd TenantUpdate) (*Tenant, error) {
	scope, tenantID, err := s.guard.Tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := scope.RequireRole(security.RoleStoreAdmin); err != nil {
		return nil, err
	}
	if upd.Status != nil {
		if !scope.IsSuperAdmin() {
			return nil, apperror.NewForbidden("only a super admin may change the subscription")
		}
		if !upd.Status.Valid() {
			return nil, apperror.NewValidation("unknown subscription status").WithDetail("field", "status")
		}
	}

	var tenant *Tenant
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		tenant, err = s.tenants.GetByID(ctx, tenantID)
		if err != nil {
			return err
		}
		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return apperror.NewValidation("tenant name is required").WithDetail("field", "name")
			}
			tenant.Name = name
		}
		if upd.Status != nil {
			tenant.SubscriptionStatus = *upd.Status
		}
		tenant.UpdatedAt = s.now()
		return s.tenants.Update(ctx, tenant)
	})
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// DeleteTenant removes a tenant and everything it owns. Super admin only.
func (s *Service) DeleteTenant(ctx context.Context, tenantID id.ID) error {
	if err := requireRole(ctx, security.RoleSuperAdmin); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		tenant, err := s.tenants.GetByID(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := s.tenants.Delete(ctx, tenantID); err != nil {
			return fmt.Errorf("delete tenant: %w", err)
		}
		entry, err := audit.NewEntry(ctx, id.Nil(), "tenant", tenantID, audit.ActionDelete, tenant)
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, entry)
	})
}

// --- Locations ---

// CreateLocation adds a branch to a tenant. Store admin or above.
func (s *Service) CreateLocation(ctx context.Context, req LocationRequest) (*Location, error) {
	scope, tenantID, err := s.guard.Tenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	if err := scope.RequireRole(security.RoleStoreAdmin); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.NewValidation("location name is required").WithDetail("field", "name")
	}

	now := s.now()
	loc := &Location{
		ID:        id.New(),
		TenantID:  tenantID,
		Name:      name,
		Address:   optionalString(req.Address),
		Phone:     optionalString(req.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.locations.Create(ctx, loc); err != nil {
		return nil, fmt.Errorf("create location: %w", err)
	}
	return loc, nil
}

// ListLocations lists the locations in scope. A location user sees only
// their own location.
func (s *Service) ListLocations(ctx context.Context, tenantID id.ID) ([]Location, error) {
	_, target, err := s.guard.LocationFilter(ctx, tenantID, id.Nil())
	if err != nil {
		return nil, err
	}
	if !id.IsNil(target.LocationID) {
		loc, err := s.locations.GetByID(ctx, target.LocationID)
		if err != nil {
			return nil, err
		}
		return []Location{*loc}, nil
	}
	return s.locations.ListByTenant(ctx, target.TenantID)
}

// GetLocation returns a location in scope.
func (s *Service) GetLocation(ctx context.Context, locationID id.ID) (*Location, error) {
	if _, _, err := s.guard.Location(ctx, id.Nil(), locationID); err != nil {
		return nil, err
	}
	return s.locations.GetByID(ctx, locationID)
}

// UpdateLocation replaces a location's attributes. Store admin or above.
func (s *Service) UpdateLocation(ctx context.Context, locationID id.ID, req LocationRequest) (*Location, error) {
	scope, _, err := s.guard.Location(ctx, req.TenantID, locationID)
	if err != nil {
		return nil, err
	}
	if err := scope.RequireRole(security.RoleStoreAdmin); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.NewValidation("location name is required").WithDetail("field", "name")
	}

	loc, err := s.locations.GetByID(ctx, locationID)
	if err != nil {
		return nil, err
	}
	loc.Name = name
	loc.Address = optionalString(req.Address)
	loc.Phone = optionalString(req.Phone)
	loc.UpdatedAt = s.now()
	if err := s.locations.Update(ctx, loc); err != nil {
		return nil, fmt.Errorf("update location: %w", err)
	}
	return loc, nil
}

// DeleteLocation removes a location with its stock and sales. Store admin or above.
func (s *Service) DeleteLocation(ctx context.Context, locationID id.ID) error {
	scope, target, err := s.guard.Location(ctx, id.Nil(), locationID)
	if err != nil {
		return err
	}
	if err := scope.RequireRole(security.RoleStoreAdmin); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.locations.Delete(ctx, locationID); err != nil {
			return fmt.Errorf("delete location: %w", err)
		}
		entry, err := audit.NewEntry(ctx, target.TenantID, "location", locationID, audit.ActionDelete, nil)
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, entry)
	})
}

// --- Products ---

// CreateProduct creates a product with its initial variants.
func (s *Service) CreateProduct(ctx context.Context, req ProductRequest) (*Product, error) {
	_, tenantID, err := s.guard.Tenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &Product{
		ID:          id.New(),
		TenantID:    tenantID,
		Name:        strings.TrimSpace(req.Name),
		Category:    strings.TrimSpace(req.Category),
		ProductCode: optionalString(req.ProductCode),
		Discount:    req.Discount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	variants, err := newVariants(p.ID, req.Variants, now)
	if err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		return nil, apperror.NewValidation("product must have at least one variant").WithDetail("field", "variants")
	}
	p.Variants = variants

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.products.Create(ctx, p); err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		if err := s.products.CreateVariants(ctx, variants); err != nil {
			return fmt.Errorf("create variants: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProducts lists the products of a tenant with their variants.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	_, tenantID, err := s.guard.Tenant(ctx, filter.TenantID)
	if err != nil {
		return nil, 0, err
	}
	filter.TenantID = tenantID
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.products.List(ctx, filter)
}

// GetProduct returns a product in scope with its variants.
func (s *Service) GetProduct(ctx context.Context, productID id.ID) (*Product, error) {
	return s.productInScope(ctx, productID)
}

// GetProductByCode finds a product of the tenant by its code.
func (s *Service) GetProductByCode(ctx context.Context, tenantID id.ID, code string) (*Product, error) {
	_, tenantID, err := s.guard.Tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperror.NewValidation("product code is required").WithDetail("field", "code")
	}
	return s.products.GetByCode(ctx, tenantID, code)
}

// UpdateProduct changes product attributes, including the discount that
// applies to future sales.
func (s *Service) UpdateProduct(ctx context.Context, productID id.ID, upd ProductUpdate) (*Product, error) {
	var p *Product
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.productInScope(ctx, productID)
		if err != nil {
			return err
		}
		if upd.Name != nil {
			p.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.Category != nil {
			p.Category = strings.TrimSpace(*upd.Category)
		}
		if upd.ProductCode != nil {
			p.ProductCode = optionalString(*upd.ProductCode)
		}
		if upd.Discount != nil {
			p.Discount = *upd.Discount
		}
		if err := p.Validate(); err != nil {
			return err
		}
		p.UpdatedAt = s.now()
		return s.products.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProduct removes a product that has never been sold. Like the other
// product writes it is open to every role within the tenant.
func (s *Service) DeleteProduct(ctx context.Context, productID id.ID) error {
	if _, err := s.productInScope(ctx, productID); err != nil {
		return err
	}
	return s.products.Delete(ctx, productID)
}

// AddVariant adds a variant to a product.
func (s *Service) AddVariant(ctx context.Context, productID id.ID, name string) (*Variant, error) {
	p, err := s.productInScope(ctx, productID)
	if err != nil {
		return nil, err
	}
	variants, err := newVariants(p.ID, []string{name}, s.now())
	if err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		return nil, apperror.NewValidation("variant name is required").WithDetail("field", "variant_name")
	}
	for _, existing := range p.Variants {
		if strings.EqualFold(existing.VariantName, variants[0].VariantName) {
			return nil, apperror.NewDuplicate("variant", "variant_name", variants[0].VariantName)
		}
	}
	if err := s.products.CreateVariants(ctx, variants); err != nil {
		return nil, fmt.Errorf("create variant: %w", err)
	}
	return &variants[0], nil
}

// DeleteVariant removes a variant that has never been sold.
func (s *Service) DeleteVariant(ctx context.Context, variantID id.ID) error {
	info, err := s.products.GetVariantInfo(ctx, variantID)
	if err != nil {
		return err
	}
	if _, _, err := s.guard.Tenant(ctx, info.TenantID); err != nil {
		return err
	}
	return s.products.DeleteVariant(ctx, variantID)
}

func (s *Service) productInScope(ctx context.Context, productID id.ID) (*Product, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.guard.Tenant(ctx, p.TenantID); err != nil {
		if apperror.IsForbidden(err) {
			return nil, apperror.NewNotFound("product", productID)
		}
		return nil, err
	}
	return p, nil
}

func newVariants(productID id.ID, names []string, now time.Time) ([]Variant, error) {
	seen := make(map[string]struct{}, len(names))
	out := make([]Variant, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if _, dup := seen[key]; dup {
			return nil, apperror.NewDuplicate("variant", "variant_name", n)
		}
		seen[key] = struct{}{}
		out = append(out, Variant{ID: id.New(), ProductID: productID, VariantName: n, CreatedAt: now})
	}
	return out, nil
}

// --- System ---

// SystemOverview returns global counters. Super admin only.
func (s *Service) SystemOverview(ctx context.Context) (*SystemOverview, error) {
	if err := requireRole(ctx, security.RoleSuperAdmin); err != nil {
		return nil, err
	}
	ov, err := s.overview.Overview(ctx, s.now().Add(-overviewWindow))
	if err != nil {
		return nil, fmt.Errorf("system overview: %w", err)
	}
	ov.RecentWindowDays = int(overviewWindow / (24 * time.Hour))
	return ov, nil
}

func requireRole(ctx context.Context, min security.Role) error {
	scope, err := security.GetScope(ctx)
	if err != nil {
		return err
	}
	return scope.RequireRole(min)
}
