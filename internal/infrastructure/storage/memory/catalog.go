package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/auth"
	"retailpos/internal/domain/catalog"
	"retailpos/internal/domain/inventory"
)

// LocationRepo implements catalog.LocationRepository,
// the system overview and the auth directory.
type LocationRepo struct {
	store *Store
}

// Locations returns the location repository.
func (s *Store) Locations() *LocationRepo { return &LocationRepo{store: s} }

// Tenants returns the tenant repository view of the catalog.
func (s *Store) Tenants() *TenantRepo { return &TenantRepo{store: s} }

var (
	_ catalog.LocationRepository = (*LocationRepo)(nil)
	_ catalog.OverviewReader     = (*LocationRepo)(nil)
	_ auth.Directory             = (*LocationRepo)(nil)
	_ catalog.TenantRepository   = (*TenantRepo)(nil)
	_ catalog.ProductRepository  = (*ProductRepo)(nil)
)

// --- Tenants ---

// TenantRepo implements catalog.TenantRepository.
type TenantRepo struct {
	store *Store
}

func (r *TenantRepo) Create(ctx context.Context, t *catalog.Tenant) error {
	return r.store.update(ctx, func(d *dataset) error {
		if _, exists := d.tenants[t.ID]; exists {
			return apperror.NewDuplicate("tenant", "id", t.ID.String())
		}
		d.tenants[t.ID] = *t
		return nil
	})
}

func (r *TenantRepo) GetByID(ctx context.Context, tenantID id.ID) (*catalog.Tenant, error) {
	var out *catalog.Tenant
	err := r.store.view(ctx, func(d *dataset) error {
		t, ok := d.tenants[tenantID]
		if !ok {
			return apperror.NewNotFound("tenant", tenantID)
		}
		out = &t
		return nil
	})
	return out, err
}

func (r *TenantRepo) List(ctx context.Context, filter catalog.TenantFilter) ([]catalog.Tenant, int, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []catalog.Tenant
	err := r.store.view(ctx, func(d *dataset) error {
		for _, t := range d.tenants {
			if filter.Status != "" && t.SubscriptionStatus != filter.Status {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(t.Name), search) {
				continue
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	lo, hi := page(total, filter.Limit, filter.Offset)
	return out[lo:hi], total, nil
}

func (r *TenantRepo) Update(ctx context.Context, t *catalog.Tenant) error {
	return r.store.update(ctx, func(d *dataset) error {
		if _, ok := d.tenants[t.ID]; !ok {
			return apperror.NewNotFound("tenant", t.ID)
		}
		d.tenants[t.ID] = *t
		return nil
	})
}

// Delete cascades to everything the tenant owns.
func (r *TenantRepo) Delete(ctx context.Context, tenantID id.ID) error {
	return r.store.update(ctx, func(d *dataset) error {
		if _, ok := d.tenants[tenantID]; !ok {
			return apperror.NewNotFound("tenant", tenantID)
		}
		delete(d.tenants, tenantID)
		for sid, s := range d.sessions {
			if s.SelectedTenantID != nil && *s.SelectedTenantID == tenantID {
				s.SelectedTenantID = nil
				d.sessions[sid] = s
			}
		}
		for locID, loc := range d.locations {
			if loc.TenantID == tenantID {
				deleteLocation(d, locID)
			}
		}
		for pid, p := range d.products {
			if p.TenantID != tenantID {
				continue
			}
			for vid, v := range d.variants {
				if v.ProductID == pid {
					delete(d.variants, vid)
				}
			}
			delete(d.products, pid)
		}
		for uid, u := range d.users {
			if u.TenantID != nil && *u.TenantID == tenantID {
				deleteUser(d, uid)
			}
		}
		for key := range d.sequences {
			if key.tenant == tenantID {
				delete(d.sequences, key)
			}
		}
		return nil
	})
}

// --- Locations ---

func (r *LocationRepo) Create(ctx context.Context, loc *catalog.Location) error {
	return r.store.update(ctx, func(d *dataset) error {
		if _, ok := d.tenants[loc.TenantID]; !ok {
			return apperror.NewNotFound("tenant", loc.TenantID)
		}
		d.locations[loc.ID] = *loc
		return nil
	})
}

func (r *LocationRepo) GetByID(ctx context.Context, locationID id.ID) (*catalog.Location, error) {
	var out *catalog.Location
	err := r.store.view(ctx, func(d *dataset) error {
		loc, ok := d.locations[locationID]
		if !ok {
			return apperror.NewNotFound("location", locationID)
		}
		out = &loc
		return nil
	})
	return out, err
}

func (r *LocationRepo) ListByTenant(ctx context.Context, tenantID id.ID) ([]catalog.Location, error) {
	out := []catalog.Location{}
	err := r.store.view(ctx, func(d *dataset) error {
		for _, loc := range d.locations {
			if loc.TenantID == tenantID {
				out = append(out, loc)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r *LocationRepo) Update(ctx context.Context, loc *catalog.Location) error {
	return r.store.update(ctx, func(d *dataset) error {
		if _, ok := d.locations[loc.ID]; !ok {
			return apperror.NewNotFound("location", loc.ID)
		}
		d.locations[loc.ID] = *loc
		return nil
	})
}

func (r *LocationRepo) Delete(ctx context.Context, locationID id.ID) error {
	return r.store.update(ctx, func(d *dataset) error {
		if _, ok := d.locations[locationID]; !ok {
			return apperror.NewNotFound("location", locationID)
		}
		deleteLocation(d, locationID)
		return nil
	})
}

// LocationTenant implements security.LocationDirectory.
func (r *LocationRepo) LocationTenant(ctx context.Context, locationID id.ID) (id.ID, error) {
	var owner id.ID
	err := r.store.view(ctx, func(d *dataset) error {
		loc, ok := d.locations[locationID]
		if !ok {
			return apperror.NewNotFound("location", locationID)
		}
		owner = loc.TenantID
		return nil
	})
	return owner, err
}

// TenantExists implements auth.Directory.
func (r *LocationRepo) TenantExists(ctx context.Context, tenantID id.ID) error {
	return r.store.view(ctx, func(d *dataset) error {
		if _, ok := d.tenants[tenantID]; !ok {
			return apperror.NewNotFound("tenant", tenantID)
		}
		return nil
	})
}

func deleteLocation(d *dataset, locationID id.ID) {
	delete(d.locations, locationID)
	for key := range d.inventory {
		if key.location == locationID {
			delete(d.inventory, key)
		}
	}
	movements := d.movements[:0]
	for _, m := range d.movements {
		if m.LocationID != locationID {
			movements = append(movements, m)
		}
	}
	d.movements = movements

	removed := make(map[id.ID]struct{})
	for invID, inv := range d.invoices {
		if inv.LocationID == locationID {
			removed[invID] = struct{}{}
			delete(d.invoices, invID)
		}
	}
	items := d.items[:0]
	for _, it := range d.items {
		if _, gone := removed[it.InvoiceID]; !gone {
			items = append(items, it)
		}
	}
	d.items = items

	for sid, s := range d.sessions {
		if s.SelectedLocationID != nil && *s.SelectedLocationID == locationID {
			s.SelectedLocationID = nil
			d.sessions[sid] = s
		}
	}
	for uid, u := range d.users {
		if u.LocationID != nil && *u.LocationID == locationID {
			deleteUser(d, uid)
		}
	}
}

func deleteUser(d *dataset, userID id.ID) {
	delete(d.users, userID)
	for sid, s := range d.sessions {
		if s.UserID == userID {
			delete(d.sessions, sid)
		}
	}
}

// Overview implements catalog.OverviewReader.
func (r *LocationRepo) Overview(ctx context.Context, since time.Time) (*catalog.SystemOverview, error) {
	ov := &catalog.SystemOverview{RecentRevenue: types.Zero()}
	err := r.store.view(ctx, func(d *dataset) error {
		ov.Tenants = len(d.tenants)
		ov.Locations = len(d.locations)
		ov.Users = len(d.users)
		ov.Invoices = len(d.invoices)
		for _, inv := range d.invoices {
			if !inv.CreatedAt.Before(since) {
				ov.RecentInvoices++
				ov.RecentRevenue = ov.RecentRevenue.Add(inv.TotalAmount)
			}
		}
		return nil
	})
	return ov, err
}

// --- Products ---

// ProductRepo implements catalog.ProductRepository and inventory.Catalog.
type ProductRepo struct {
	store *Store
}

// Products returns the product repository.
func (s *Store) Products() *ProductRepo { return &ProductRepo{store: s} }

func (r *ProductRepo) Create(ctx context.Context, p *catalog.Product) error {
	return r.store.update(ctx, func(d *dataset) error {
		if _, ok := d.tenants[p.TenantID]; !ok {
			return apperror.NewNotFound("tenant", p.TenantID)
		}
		if err := checkProductCode(d, p); err != nil {
			return err
		}
		header := *p
		header.Variants = nil
		d.products[p.ID] = header
		return nil
	})
}

func checkProductCode(d *dataset, p *catalog.Product) error {
	if p.ProductCode == nil {
		return nil
	}
	for _, other := range d.products {
		if other.ID != p.ID && other.TenantID == p.TenantID &&
			other.ProductCode != nil && *other.ProductCode == *p.ProductCode {
			return apperror.NewDuplicate("product", "product_code", *p.ProductCode)
		}
	}
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*catalog.Product, error) {
	var out *catalog.Product
	err := r.store.view(ctx, func(d *dataset) error {
		p, ok := d.products[productID]
		if !ok {
			return apperror.NewNotFound("product", productID)
		}
		p.Variants = variantsOf(d, p.ID)
		out = &p
		return nil
	})
	return out, err
}

func (r *ProductRepo) GetByCode(ctx context.Context, tenantID id.ID, code string) (*catalog.Product, error) {
	var out *catalog.Product
	err := r.store.view(ctx, func(d *dataset) error {
		for _, p := range d.products {
			if p.TenantID == tenantID && p.ProductCode != nil && *p.ProductCode == code {
				p.Variants = variantsOf(d, p.ID)
				out = &p
				return nil
			}
		}
		return apperror.NewNotFound("product", code)
	})
	return out, err
}

func (r *ProductRepo) List(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, int, error) {
	search := strings.ToLower(filter.Search)
	var out []catalog.Product
	err := r.store.view(ctx, func(d *dataset) error {
		for _, p := range d.products {
			if p.TenantID != filter.TenantID {
				continue
			}
			if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
				continue
			}
			p.Variants = variantsOf(d, p.ID)
			if search != "" && !productMatches(p, search) {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	lo, hi := page(total, filter.Limit, filter.Offset)
	return out[lo:hi], total, nil
}

func productMatches(p catalog.Product, search string) bool {
	if strings.Contains(strings.ToLower(p.Name), search) {
		return true
	}
	if p.ProductCode != nil && strings.Contains(strings.ToLower(*p.ProductCode), search) {
		return true
	}
	for _, v := range p.Variants {
		if strings.Contains(strings.ToLower(v.VariantName), search) {
			return true
		}
	}
	return false
}

func variantsOf(d *dataset, productID id.ID) []catalog.Variant {
	out := []catalog.Variant{}
	for _, v := range d.variants {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return id.Less(out[i].ID, out[j].ID) })
	return out
}

func (r *ProductRepo) Update(ctx context.Context, p *catalog.Product) error {
	return r.store.update(ctx, func(d *dataset) error {
		if _, ok := d.products[p.ID]; !ok {
			return apperror.NewNotFound("product", p.ID)
		}
		if err := checkProductCode(d, p); err != nil {
			return err
		}
		header := *p
		header.Variants = nil
		d.products[p.ID] = header
		return nil
	})
}

func (r *ProductRepo) Delete(ctx context.Context, productID id.ID) error {
	return r.store.update(ctx, func(d *dataset) error {
		if _, ok := d.products[productID]; !ok {
			return apperror.NewNotFound("product", productID)
		}
		for _, v := range variantsOf(d, productID) {
			if err := deleteVariant(d, v.ID); err != nil {
				return err
			}
		}
		delete(d.products, productID)
		return nil
	})
}

func (r *ProductRepo) CreateVariants(ctx context.Context, variants []catalog.Variant) error {
	return r.store.update(ctx, func(d *dataset) error {
		for _, v := range variants {
			if _, ok := d.products[v.ProductID]; !ok {
				return apperror.NewNotFound("product", v.ProductID)
			}
			for _, other := range d.variants {
				if other.ProductID == v.ProductID && strings.EqualFold(other.VariantName, v.VariantName) {
					return apperror.NewDuplicate("variant", "variant_name", v.VariantName)
				}
			}
			d.variants[v.ID] = v
		}
		return nil
	})
}

func (r *ProductRepo) DeleteVariant(ctx context.Context, variantID id.ID) error {
	return r.store.update(ctx, func(d *dataset) error {
		return deleteVariant(d, variantID)
	})
}

// deleteVariant refuses sold variants and cascades to stock otherwise.
func deleteVariant(d *dataset, variantID id.ID) error {
	if _, ok := d.variants[variantID]; !ok {
		return apperror.NewNotFound("variant", variantID)
	}
	for _, it := range d.items {
		if it.VariantID == variantID {
			return apperror.NewConflict("variant has been sold and cannot be deleted").
				WithDetail("variant_id", variantID)
		}
	}
	delete(d.variants, variantID)
	for key := range d.inventory {
		if key.variant == variantID {
			delete(d.inventory, key)
		}
	}
	movements := d.movements[:0]
	for _, m := range d.movements {
		if m.VariantID != variantID {
			movements = append(movements, m)
		}
	}
	d.movements = movements
	return nil
}

// GetVariantInfo implements inventory.Catalog.
func (r *ProductRepo) GetVariantInfo(ctx context.Context, variantID id.ID) (*inventory.VariantInfo, error) {
	var out *inventory.VariantInfo
	err := r.store.view(ctx, func(d *dataset) error {
		info, ok := variantInfo(d, variantID)
		if !ok {
			return apperror.NewNotFound("variant", variantID)
		}
		out = info
		return nil
	})
	return out, err
}

// GetVariantInfos implements inventory.Catalog.
func (r *ProductRepo) GetVariantInfos(ctx context.Context, variantIDs []id.ID) (map[id.ID]*inventory.VariantInfo, error) {
	out := make(map[id.ID]*inventory.VariantInfo, len(variantIDs))
	err := r.store.view(ctx, func(d *dataset) error {
		for _, vid := range variantIDs {
			if info, ok := variantInfo(d, vid); ok {
				out[vid] = info
			}
		}
		return nil
	})
	return out, err
}

func variantInfo(d *dataset, variantID id.ID) (*inventory.VariantInfo, bool) {
	v, ok := d.variants[variantID]
	if !ok {
		return nil, false
	}
	p := d.products[v.ProductID]
	return &inventory.VariantInfo{
		VariantID:   v.ID,
		ProductID:   p.ID,
		TenantID:    p.TenantID,
		ProductName: p.Name,
		VariantName: v.VariantName,
		Category:    p.Category,
		ProductCode: p.ProductCode,
		Discount:    p.Discount,
	}, true
}
