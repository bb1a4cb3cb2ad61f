package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/core/tx"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/pricing"
	"retailpos/pkg/logger"
)

// Ledger owns quantity and price state per (location, variant).
// It trusts its caller for tenant/location scope; see Service for the
// guarded entry points.
type Ledger struct {
	repo      Repository
	catalog   Catalog
	txManager tx.Manager
	metrics   *ledgerMetrics
	now       func() time.Time
}

// NewLedger creates a stock ledger.
func NewLedger(repo Repository, catalog Catalog, txManager tx.Manager) *Ledger {
	return &Ledger{
		repo:      repo,
		catalog:   catalog,
		txManager: txManager,
		metrics:   newLedgerMetrics(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// StockIn adds quantity at a location, creating the inventory row on first
// receipt. Cost and selling price are overwritten with the supplied values.
func (l *Ledger) StockIn(ctx context.Context, req StockInRequest) (*Inventory, error) {
	if err := validateStockIn(req); err != nil {
		return nil, err
	}

	var result *Inventory
	err := l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		info, err := l.catalog.GetVariantInfo(ctx, req.VariantID)
		if err != nil {
			return err
		}
		if info.TenantID != req.TenantID {
			return apperror.NewNotFound("variant", req.VariantID)
		}

		inv, err := l.lockOrCreate(ctx, req)
		if err != nil {
			return err
		}

		before := inv.Quantity
		inv.Quantity += req.Quantity
		inv.CostPrice = req.CostPrice
		inv.SellingPrice = req.SellingPrice
		inv.UpdatedAt = l.now()
		if err := l.repo.Update(ctx, inv); err != nil {
			return fmt.Errorf("update inventory: %w", err)
		}

		movement := StockMovement{
			ID:               id.New(),
			TenantID:         req.TenantID,
			LocationID:       req.LocationID,
			VariantID:        req.VariantID,
			MovementType:     MovementStockIn,
			Quantity:         req.Quantity,
			UnitCostPrice:    req.CostPrice,
			UnitSellingPrice: req.SellingPrice,
			QuantityBefore:   before,
			QuantityAfter:    inv.Quantity,
			CreatedAt:        inv.UpdatedAt,
		}
		if s := strings.TrimSpace(req.Supplier); s != "" {
			movement.Supplier = &s
		}
		if err := l.repo.CreateMovements(ctx, []StockMovement{movement}); err != nil {
			return fmt.Errorf("create movement: %w", err)
		}

		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.metrics.stockIn.Add(ctx, req.Quantity)
	logger.Info(ctx, "stock received",
		"location_id", req.LocationID,
		"variant_id", req.VariantID,
		"quantity", req.Quantity,
		"on_hand", result.Quantity)

	return result, nil
}

func (l *Ledger) lockOrCreate(ctx context.Context, req StockInRequest) (*Inventory, error) {
	inv, err := l.repo.GetForUpdate(ctx, req.LocationID, req.VariantID)
	if err == nil {
		return inv, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("lock inventory: %w", err)
	}

	now := l.now()
	if _, err := l.repo.Insert(ctx, &Inventory{
		ID:           id.New(),
		TenantID:     req.TenantID,
		LocationID:   req.LocationID,
		VariantID:    req.VariantID,
		CostPrice:    req.CostPrice,
		SellingPrice: req.SellingPrice,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return nil, fmt.Errorf("insert inventory: %w", err)
	}

	// Either our row or the one a concurrent first receipt just committed.
	inv, err = l.repo.GetForUpdate(ctx, req.LocationID, req.VariantID)
	if err != nil {
		return nil, fmt.Errorf("lock inventory: %w", err)
	}
	return inv, nil
}

func validateStockIn(req StockInRequest) error {
	switch {
	case id.IsNil(req.TenantID):
		return apperror.NewValidation("tenant is required").WithDetail("field", "tenant_id")
	case id.IsNil(req.LocationID):
		return apperror.NewValidation("location is required").WithDetail("field", "location_id")
	case id.IsNil(req.VariantID):
		return apperror.NewValidation("variant is required").WithDetail("field", "variant_id")
	case req.Quantity <= 0:
		return apperror.NewValidation("quantity must be greater than zero").WithDetail("field", "quantity")
	case !req.CostPrice.IsPositive():
		return apperror.NewValidation("cost price must be greater than zero").WithDetail("field", "cost_price")
	case !req.SellingPrice.IsPositive():
		return apperror.NewValidation("selling price must be greater than zero").WithDetail("field", "selling_price")
	}
	return nil
}

// CheckStock reports availability and the effective price of a variant at a
// location. A missing row is reported as unavailable, never created.
func (l *Ledger) CheckStock(ctx context.Context, locationID, variantID id.ID) (*StockCheck, error) {
	inv, err := l.repo.Get(ctx, locationID, variantID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return &StockCheck{Available: false, Quantity: 0}, nil
		}
		return nil, fmt.Errorf("get inventory: %w", err)
	}

	info, err := l.catalog.GetVariantInfo(ctx, variantID)
	if err != nil {
		return nil, err
	}
	return newStockCheck(inv, info), nil
}

// LockForSale takes row locks on the inventory of variantIDs at a location
// in ascending variant order and returns the stock check of each variant as
// seen under those locks. Variants without a row are unavailable. Must be
// called inside a transaction.
func (l *Ledger) LockForSale(ctx context.Context, locationID id.ID, variantIDs []id.ID) (map[id.ID]*StockCheck, error) {
	sorted := append([]id.ID(nil), variantIDs...)
	id.Sort(sorted)
	rows, err := l.repo.LockMany(ctx, locationID, sorted)
	if err != nil {
		return nil, fmt.Errorf("lock inventory rows: %w", err)
	}
	infos, err := l.catalog.GetVariantInfos(ctx, sorted)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}

	checks := make(map[id.ID]*StockCheck, len(sorted))
	for _, variantID := range sorted {
		inv, ok := rows[variantID]
		if !ok {
			checks[variantID] = &StockCheck{Available: false, Quantity: 0}
			continue
		}
		info, ok := infos[variantID]
		if !ok {
			return nil, apperror.NewNotFound("variant", variantID)
		}
		checks[variantID] = newStockCheck(inv, info)
	}
	return checks, nil
}

func newStockCheck(inv *Inventory, info *VariantInfo) *StockCheck {
	return &StockCheck{
		Available:       inv.Quantity > 0,
		Quantity:        inv.Quantity,
		CostPrice:       inv.CostPrice,
		SellingPrice:    inv.SellingPrice,
		Discount:        info.Discount,
		DiscountedPrice: types.RoundMoney(pricing.ResolvePrice(inv.SellingPrice, &info.Discount)),
	}
}

// DeductStock removes quantity at a location. Fails with NotFound when no row
// exists and InsufficientStock when quantity exceeds the amount on hand.
func (l *Ledger) DeductStock(ctx context.Context, req DeductRequest) (*Inventory, error) {
	if req.Quantity <= 0 {
		return nil, apperror.NewValidation("quantity must be greater than zero").WithDetail("field", "quantity")
	}

	var result *Inventory
	err := l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := l.repo.GetForUpdate(ctx, req.LocationID, req.VariantID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("inventory", req.VariantID).
					WithDetail("location_id", req.LocationID)
			}
			return fmt.Errorf("lock inventory: %w", err)
		}
		if inv.TenantID != req.TenantID {
			return apperror.NewNotFound("inventory", req.VariantID).
				WithDetail("location_id", req.LocationID)
		}
		if req.Quantity > inv.Quantity {
			l.metrics.insufficient.Add(ctx, 1)
			return apperror.NewInsufficientStock(req.VariantID.String(), req.Quantity, inv.Quantity)
		}

		before := inv.Quantity
		inv.Quantity -= req.Quantity
		inv.UpdatedAt = l.now()
		if err := l.repo.Update(ctx, inv); err != nil {
			return fmt.Errorf("update inventory: %w", err)
		}

		movement := StockMovement{
			ID:               id.New(),
			TenantID:         req.TenantID,
			LocationID:       req.LocationID,
			VariantID:        req.VariantID,
			MovementType:     MovementStockOut,
			Quantity:         req.Quantity,
			UnitCostPrice:    inv.CostPrice,
			UnitSellingPrice: inv.SellingPrice,
			ReferenceID:      req.ReferenceID,
			QuantityBefore:   before,
			QuantityAfter:    inv.Quantity,
			CreatedAt:        inv.UpdatedAt,
		}
		if err := l.repo.CreateMovements(ctx, []StockMovement{movement}); err != nil {
			return fmt.Errorf("create movement: %w", err)
		}

		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.metrics.stockOut.Add(ctx, req.Quantity, metric.WithAttributes(attribute.String("location_id", req.LocationID.String())))
	return result, nil
}

// GetMovements returns the movement log of a location, newest first.
func (l *Ledger) GetMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	if id.IsNil(filter.LocationID) {
		return nil, apperror.NewValidation("location is required").WithDetail("field", "location_id")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, apperror.NewValidation("end date must not be before start date").WithDetail("field", "to")
	}
	movements, err := l.repo.ListMovements(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return movements, nil
}

// GetStockStatus groups stock by (product, variant) across locations.
func (l *Ledger) GetStockStatus(ctx context.Context, filter StockFilter) ([]StockStatus, error) {
	lines, err := l.repo.ListStock(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	return groupStatus(lines), nil
}

func groupStatus(lines []StockLine) []StockStatus {
	index := make(map[id.ID]int)
	var out []StockStatus
	for _, line := range lines {
		i, ok := index[line.VariantID]
		if !ok {
			i = len(out)
			index[line.VariantID] = i
			out = append(out, StockStatus{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Category:    line.Category,
				VariantID:   line.VariantID,
				VariantName: line.VariantName,
			})
		}
		out[i].TotalQuantity += line.Quantity
		out[i].Locations = append(out[i].Locations, LocationStock{
			LocationID:   line.LocationID,
			LocationName: line.LocationName,
			Quantity:     line.Quantity,
			CostPrice:    line.CostPrice,
			SellingPrice: line.SellingPrice,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProductName != out[j].ProductName {
			return out[i].ProductName < out[j].ProductName
		}
		return out[i].VariantName < out[j].VariantName
	})
	return out
}

// LocalStockReport summarizes the stock of one location.
func (l *Ledger) LocalStockReport(ctx context.Context, tenantID, locationID id.ID, threshold int64) (*StockReport, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	lines, err := l.repo.ListStock(ctx, StockFilter{TenantID: tenantID, LocationID: &locationID})
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}

	report := &StockReport{
		LocationID:        locationID,
		TotalItems:        len(lines),
		TotalValue:        types.Zero(),
		LowStockThreshold: threshold,
		LowStockItems:     []StockLine{},
		Items:             lines,
	}
	if report.Items == nil {
		report.Items = []StockLine{}
	}
	for _, line := range lines {
		report.TotalQuantity += line.Quantity
		report.TotalValue = report.TotalValue.Add(line.Value())
		if line.Quantity < threshold {
			report.LowStockItems = append(report.LowStockItems, line)
		}
	}
	report.TotalValue = types.RoundMoney(report.TotalValue)
	return report, nil
}
