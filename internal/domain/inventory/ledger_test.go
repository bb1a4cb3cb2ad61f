package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/core/apperror"
	appctx "retailpos/internal/core/context"
	"retailpos/internal/core/id"
	"retailpos/internal/core/security"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/catalog"
	"retailpos/internal/domain/inventory"
	"retailpos/internal/infrastructure/storage/memory"
)

type ledgerSetup struct {
	store   *memory.Store
	ledger  *inventory.Ledger
	svc     *inventory.Service
	tenant  id.ID
	loc     id.ID
	other   id.ID
	tee     id.ID
	cap     id.ID
	foreign id.ID // variant of another tenant
}

func setupLedger(t *testing.T) *ledgerSetup {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	now := time.Now().UTC()

	s := &ledgerSetup{store: store, tenant: id.New(), loc: id.New(), other: id.New()}
	foreignTenant := id.New()
	for _, tn := range []id.ID{s.tenant, foreignTenant} {
		require.NoError(t, store.Tenants().Create(ctx, &catalog.Tenant{ID: tn, Name: "T", SubscriptionStatus: catalog.StatusActive, CreatedAt: now, UpdatedAt: now}))
	}
	require.NoError(t, store.Locations().Create(ctx, &catalog.Location{ID: s.loc, TenantID: s.tenant, Name: "Front", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.Locations().Create(ctx, &catalog.Location{ID: s.other, TenantID: s.tenant, Name: "Back", CreatedAt: now, UpdatedAt: now}))

	s.tee = variant(t, store, s.tenant, "Tee", "20")
	s.cap = variant(t, store, s.tenant, "Cap", "0")
	s.foreign = variant(t, store, foreignTenant, "Hat", "0")

	s.ledger = inventory.NewLedger(store.Inventory(), store.Products(), store)
	s.svc = inventory.NewService(s.ledger, security.NewGuard(store.Locations()), store.Audit(), store, 5)
	return s
}

func variant(t *testing.T, store *memory.Store, tenantID id.ID, name, discount string) id.ID {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	p := &catalog.Product{ID: id.New(), TenantID: tenantID, Name: name, Category: "Apparel", Discount: decimal.RequireFromString(discount), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Products().Create(ctx, p))
	v := catalog.Variant{ID: id.New(), ProductID: p.ID, VariantName: "Default", CreatedAt: now}
	require.NoError(t, store.Products().CreateVariants(ctx, []catalog.Variant{v}))
	return v.ID
}

func (s *ledgerSetup) in(loc, variantID id.ID, qty int64, cost, price string) inventory.StockInRequest {
	return inventory.StockInRequest{
		TenantID: s.tenant, LocationID: loc, VariantID: variantID, Quantity: qty,
		CostPrice: types.MustMoney(cost), SellingPrice: types.MustMoney(price),
	}
}

func TestStockIn_CreatesRowAndOverwritesPrices(t *testing.T) {
	s := setupLedger(t)
	ctx := context.Background()

	inv, err := s.ledger.StockIn(ctx, s.in(s.loc, s.tee, 10, "5", "12"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), inv.Quantity)

	inv, err = s.ledger.StockIn(ctx, s.in(s.loc, s.tee, 4, "6", "15"))
	require.NoError(t, err)
	assert.Equal(t, int64(14), inv.Quantity)
	assert.True(t, types.MustMoney("6").Equal(inv.CostPrice))
	assert.True(t, types.MustMoney("15").Equal(inv.SellingPrice))

	movements, err := s.ledger.GetMovements(ctx, inventory.MovementFilter{LocationID: s.loc})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, inventory.MovementStockIn, m.MovementType)
		assert.True(t, m.Consistent())
	}
	assert.ElementsMatch(t, []int64{0, 10}, []int64{movements[0].QuantityBefore, movements[1].QuantityBefore})
}

func TestStockIn_Validation(t *testing.T) {
	s := setupLedger(t)
	ctx := context.Background()

	bad := []inventory.StockInRequest{
		s.in(s.loc, s.tee, 0, "5", "12"),
		s.in(s.loc, s.tee, 1, "0", "12"),
		s.in(s.loc, s.tee, 1, "5", "-1"),
		s.in(id.Nil(), s.tee, 1, "5", "12"),
	}
	for _, req := range bad {
		_, err := s.ledger.StockIn(ctx, req)
		assert.True(t, apperror.IsValidation(err), "got %v", err)
	}

	_, err := s.ledger.StockIn(ctx, s.in(s.loc, s.foreign, 1, "5", "12"))
	assert.True(t, apperror.IsNotFound(err))
}

func TestCheckStock(t *testing.T) {
	s := setupLedger(t)
	ctx := context.Background()

	check, err := s.ledger.CheckStock(ctx, s.loc, s.tee)
	require.NoError(t, err)
	assert.False(t, check.Available)
	assert.Zero(t, check.Quantity)
	_, err = s.store.Inventory().Get(ctx, s.loc, s.tee)
	assert.True(t, apperror.IsNotFound(err))

	_, err = s.ledger.StockIn(ctx, s.in(s.loc, s.tee, 3, "5", "12.50"))
	require.NoError(t, err)

	check, err = s.ledger.CheckStock(ctx, s.loc, s.tee)
	require.NoError(t, err)
	assert.True(t, check.Available)
	assert.Equal(t, int64(3), check.Quantity)
	assert.True(t, types.MustMoney("10").Equal(check.DiscountedPrice), check.DiscountedPrice.String())
}

func TestLockForSale(t *testing.T) {
	s := setupLedger(t)
	ctx := context.Background()
	_, err := s.ledger.StockIn(ctx, s.in(s.loc, s.tee, 3, "5", "12.50"))
	require.NoError(t, err)

	var checks map[id.ID]*inventory.StockCheck
	err = s.store.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		checks, err = s.ledger.LockForSale(ctx, s.loc, []id.ID{s.cap, s.tee})
		return err
	})
	require.NoError(t, err)
	require.Len(t, checks, 2)

	assert.True(t, checks[s.tee].Available)
	assert.Equal(t, int64(3), checks[s.tee].Quantity)
	assert.True(t, types.MustMoney("10").Equal(checks[s.tee].DiscountedPrice))
	assert.True(t, types.MustMoney("5").Equal(checks[s.tee].CostPrice))

	// No row yet: reported, not created.
	assert.False(t, checks[s.cap].Available)
	assert.Zero(t, checks[s.cap].Quantity)
	_, err = s.store.Inventory().Get(ctx, s.loc, s.cap)
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeductStock(t *testing.T) {
	s := setupLedger(t)
	ctx := context.Background()

	_, err := s.ledger.DeductStock(ctx, inventory.DeductRequest{TenantID: s.tenant, LocationID: s.loc, VariantID: s.cap, Quantity: 1})
	assert.True(t, apperror.IsNotFound(err))

	_, err = s.ledger.StockIn(ctx, s.in(s.loc, s.cap, 2, "1", "3"))
	require.NoError(t, err)

	_, err = s.ledger.DeductStock(ctx, inventory.DeductRequest{TenantID: s.tenant, LocationID: s.loc, VariantID: s.cap, Quantity: 3})
	assert.True(t, apperror.IsInsufficientStock(err))

	ref := id.New()
	inv, err := s.ledger.DeductStock(ctx, inventory.DeductRequest{TenantID: s.tenant, LocationID: s.loc, VariantID: s.cap, Quantity: 2, ReferenceID: &ref})
	require.NoError(t, err)
	assert.Zero(t, inv.Quantity)

	movements, err := s.ledger.GetMovements(ctx, inventory.MovementFilter{LocationID: s.loc, VariantID: &s.cap})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	var out inventory.StockMovement
	for _, m := range movements {
		if m.MovementType == inventory.MovementStockOut {
			out = m
		}
	}
	assert.Equal(t, int64(2), out.QuantityBefore)
	assert.Equal(t, int64(0), out.QuantityAfter)
	require.NotNil(t, out.ReferenceID)
	assert.Equal(t, ref, *out.ReferenceID)
}

func TestGetMovements_RequiresLocationAndOrderedRange(t *testing.T) {
	s := setupLedger(t)
	ctx := context.Background()

	_, err := s.ledger.GetMovements(ctx, inventory.MovementFilter{})
	assert.True(t, apperror.IsValidation(err))

	now := time.Now()
	earlier := now.Add(-time.Hour)
	_, err = s.ledger.GetMovements(ctx, inventory.MovementFilter{LocationID: s.loc, From: &now, To: &earlier})
	assert.True(t, apperror.IsValidation(err))
}

func TestStockStatusAndReport(t *testing.T) {
	s := setupLedger(t)
	ctx := context.Background()

	_, err := s.ledger.StockIn(ctx, s.in(s.loc, s.tee, 20, "5", "12"))
	require.NoError(t, err)
	_, err = s.ledger.StockIn(ctx, s.in(s.other, s.tee, 4, "5", "12"))
	require.NoError(t, err)
	_, err = s.ledger.StockIn(ctx, s.in(s.loc, s.cap, 2, "1.50", "3"))
	require.NoError(t, err)

	status, err := s.ledger.GetStockStatus(ctx, inventory.StockFilter{TenantID: s.tenant})
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.Equal(t, "Cap", status[0].ProductName)
	assert.Equal(t, "Tee", status[1].ProductName)
	assert.Equal(t, int64(24), status[1].TotalQuantity)
	assert.Len(t, status[1].Locations, 2)

	report, err := s.ledger.LocalStockReport(ctx, s.tenant, s.loc, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalItems)
	assert.Equal(t, int64(22), report.TotalQuantity)
	assert.True(t, types.MustMoney("103").Equal(report.TotalValue), report.TotalValue.String())
	require.Len(t, report.LowStockItems, 1)
	assert.Equal(t, s.cap, report.LowStockItems[0].VariantID)
}

func TestService_ScopesRequests(t *testing.T) {
	s := setupLedger(t)
	clerk := appctx.WithPrincipal(context.Background(), &appctx.Principal{
		UserID: id.New(), Role: string(security.RoleLocationUser), TenantID: s.tenant, LocationID: s.loc,
	})

	req := s.in(id.Nil(), s.tee, 3, "5", "12")
	req.TenantID = id.Nil()
	inv, err := s.svc.StockIn(clerk, req)
	require.NoError(t, err)
	assert.Equal(t, s.loc, inv.LocationID)

	history, err := s.store.Audit().History(context.Background(), "inventory", inv.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	req.LocationID = s.other
	_, err = s.svc.StockIn(clerk, req)
	assert.True(t, apperror.IsForbidden(err))

	_, err = s.svc.CheckStock(clerk, id.Nil(), s.other, s.tee)
	assert.True(t, apperror.IsForbidden(err))

	status, err := s.svc.GetStockStatus(clerk, inventory.StockFilter{})
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Len(t, status[0].Locations, 1)

	_, err = s.svc.StockIn(context.Background(), req)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}
