package memory

import (
	"context"
	"sort"
	"strings"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/domain/inventory"
)

// InventoryRepo implements inventory.Repository.
type InventoryRepo struct {
	store *Store
}

// Inventory returns the stock ledger repository.
func (s *Store) Inventory() *InventoryRepo { return &InventoryRepo{store: s} }

var _ inventory.Repository = (*InventoryRepo)(nil)

func (r *InventoryRepo) Get(ctx context.Context, locationID, variantID id.ID) (*inventory.Inventory, error) {
	var out *inventory.Inventory
	err := r.store.view(ctx, func(d *dataset) error {
		inv, ok := d.inventory[stockKey{locationID, variantID}]
		if !ok {
			return apperror.NewNotFound("inventory", variantID)
		}
		out = &inv
		return nil
	})
	return out, err
}

// GetForUpdate is Get: the store lock already excludes other writers.
func (r *InventoryRepo) GetForUpdate(ctx context.Context, locationID, variantID id.ID) (*inventory.Inventory, error) {
	return r.Get(ctx, locationID, variantID)
}

func (r *InventoryRepo) LockMany(ctx context.Context, locationID id.ID, variantIDs []id.ID) (map[id.ID]*inventory.Inventory, error) {
	out := make(map[id.ID]*inventory.Inventory, len(variantIDs))
	err := r.store.view(ctx, func(d *dataset) error {
		for _, v := range variantIDs {
			if inv, ok := d.inventory[stockKey{locationID, v}]; ok {
				out[v] = &inv
			}
		}
		return nil
	})
	return out, err
}

func (r *InventoryRepo) Insert(ctx context.Context, inv *inventory.Inventory) (bool, error) {
	var created bool
	err := r.store.update(ctx, func(d *dataset) error {
		key := stockKey{inv.LocationID, inv.VariantID}
		if _, exists := d.inventory[key]; exists {
			return nil
		}
		if _, ok := d.locations[inv.LocationID]; !ok {
			return apperror.NewNotFound("location", inv.LocationID)
		}
		if _, ok := d.variants[inv.VariantID]; !ok {
			return apperror.NewNotFound("variant", inv.VariantID)
		}
		d.inventory[key] = *inv
		created = true
		return nil
	})
	return created, err
}

func (r *InventoryRepo) Update(ctx context.Context, inv *inventory.Inventory) error {
	return r.store.update(ctx, func(d *dataset) error {
		key := stockKey{inv.LocationID, inv.VariantID}
		if _, ok := d.inventory[key]; !ok {
			return apperror.NewNotFound("inventory", inv.VariantID)
		}
		if inv.Quantity < 0 {
			return apperror.NewValidation("inventory quantity cannot be negative")
		}
		d.inventory[key] = *inv
		return nil
	})
}

func (r *InventoryRepo) CreateMovements(ctx context.Context, movements []inventory.StockMovement) error {
	return r.store.update(ctx, func(d *dataset) error {
		d.movements = append(d.movements, movements...)
		return nil
	})
}

func (r *InventoryRepo) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	var out []inventory.StockMovement
	err := r.store.view(ctx, func(d *dataset) error {
		for _, m := range d.movements {
			if m.LocationID != filter.LocationID {
				continue
			}
			if filter.VariantID != nil && m.VariantID != *filter.VariantID {
				continue
			}
			if !inRange(m.CreatedAt, filter.From, filter.To) {
				continue
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return id.Less(out[j].ID, out[i].ID)
	})
	lo, hi := page(len(out), filter.Limit, filter.Offset)
	return out[lo:hi], nil
}

func (r *InventoryRepo) ListStock(ctx context.Context, filter inventory.StockFilter) ([]inventory.StockLine, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []inventory.StockLine
	err := r.store.view(ctx, func(d *dataset) error {
		for _, inv := range d.inventory {
			if inv.TenantID != filter.TenantID {
				continue
			}
			if filter.LocationID != nil && inv.LocationID != *filter.LocationID {
				continue
			}
			variant := d.variants[inv.VariantID]
			product := d.products[variant.ProductID]
			if filter.ProductID != nil && product.ID != *filter.ProductID {
				continue
			}
			if filter.Category != "" && !strings.EqualFold(product.Category, filter.Category) {
				continue
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(product.Name), search) &&
				!strings.Contains(strings.ToLower(variant.VariantName), search) {
				continue
			}
			out = append(out, inventory.StockLine{
				InventoryID:  inv.ID,
				LocationID:   inv.LocationID,
				LocationName: d.locations[inv.LocationID].Name,
				ProductID:    product.ID,
				ProductName:  product.Name,
				Category:     product.Category,
				VariantID:    inv.VariantID,
				VariantName:  variant.VariantName,
				Quantity:     inv.Quantity,
				CostPrice:    inv.CostPrice,
				SellingPrice: inv.SellingPrice,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ProductName != b.ProductName {
			return a.ProductName < b.ProductName
		}
		if a.VariantName != b.VariantName {
			return a.VariantName < b.VariantName
		}
		return a.LocationName < b.LocationName
	})
	return out, nil
}
