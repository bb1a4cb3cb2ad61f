package inventory

import (
	"context"
	"fmt"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/core/security"
	"retailpos/internal/core/tx"
	"retailpos/internal/domain/audit"
)

// Service exposes the ledger to callers, resolving every request against
// the caller's tenant/location scope first.
type Service struct {
	ledger            *Ledger
	guard             *security.Guard
	audit             audit.Recorder
	txManager         tx.Manager
	lowStockThreshold int64
}

// NewService creates the guarded inventory service.
func NewService(ledger *Ledger, guard *security.Guard, recorder audit.Recorder, txManager tx.Manager, lowStockThreshold int64) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		ledger:            ledger,
		guard:             guard,
		audit:             recorder,
		txManager:         txManager,
		lowStockThreshold: lowStockThreshold,
	}
}

// StockIn receives stock at a location within the caller's scope.
// Zero TenantID/LocationID default to the caller's bound scope.
func (s *Service) StockIn(ctx context.Context, req StockInRequest) (*Inventory, error) {
	_, target, err := s.guard.Location(ctx, req.TenantID, req.LocationID)
	if err != nil {
		return nil, err
	}
	req.TenantID = target.TenantID
	req.LocationID = target.LocationID

	var inv *Inventory
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.ledger.StockIn(ctx, req)
		if err != nil {
			return err
		}
		entry, err := audit.NewEntry(ctx, req.TenantID, "inventory", inv.ID, audit.ActionStockIn, map[string]any{
			"variant_id":    req.VariantID,
			"quantity":      req.Quantity,
			"cost_price":    req.CostPrice,
			"selling_price": req.SellingPrice,
			"supplier":      req.Supplier,
			"on_hand":       inv.Quantity,
		})
		if err != nil {
			return err
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// CheckStock reports availability of a variant at a location in scope.
func (s *Service) CheckStock(ctx context.Context, tenantID, locationID, variantID id.ID) (*StockCheck, error) {
	if id.IsNil(variantID) {
		return nil, apperror.NewValidation("variant is required").WithDetail("field", "variant_id")
	}
	_, target, err := s.guard.Location(ctx, tenantID, locationID)
	if err != nil {
		return nil, err
	}
	return s.ledger.CheckStock(ctx, target.LocationID, variantID)
}

// GetMovements lists movements of a location in scope, newest first.
func (s *Service) GetMovements(ctx context.Context, tenantID id.ID, filter MovementFilter) ([]StockMovement, error) {
	_, target, err := s.guard.Location(ctx, tenantID, filter.LocationID)
	if err != nil {
		return nil, err
	}
	filter.LocationID = target.LocationID
	return s.ledger.GetMovements(ctx, filter)
}

// GetStockStatus aggregates stock across the locations in scope.
func (s *Service) GetStockStatus(ctx context.Context, filter StockFilter) ([]StockStatus, error) {
	var locationReq id.ID
	if filter.LocationID != nil {
		locationReq = *filter.LocationID
	}
	_, target, err := s.guard.LocationFilter(ctx, filter.TenantID, locationReq)
	if err != nil {
		return nil, err
	}
	filter.TenantID = target.TenantID
	filter.LocationID = nil
	if !id.IsNil(target.LocationID) {
		loc := target.LocationID
		filter.LocationID = &loc
	}
	return s.ledger.GetStockStatus(ctx, filter)
}

// LocalStockReport summarizes one location in scope.
func (s *Service) LocalStockReport(ctx context.Context, tenantID, locationID id.ID) (*StockReport, error) {
	_, target, err := s.guard.Location(ctx, tenantID, locationID)
	if err != nil {
		return nil, err
	}
	return s.ledger.LocalStockReport(ctx, target.TenantID, target.LocationID, s.lowStockThreshold)
}
