package invoice_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/core/apperror"
	appctx "retailpos/internal/core/context"
	"retailpos/internal/core/id"
	"retailpos/internal/core/security"
	"retailpos/internal/core/tx"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/audit"
	"retailpos/internal/domain/catalog"
	"retailpos/internal/domain/inventory"
	"retailpos/internal/domain/invoice"
	"retailpos/internal/infrastructure/storage/memory"
)

type fixture struct {
	store    *memory.Store
	ledger   *inventory.Ledger
	svc      *invoice.Service
	tenant   id.ID
	locA     id.ID
	locB     id.ID
	shirt    id.ID // product discount 10%
	mug      id.ID // no discount
	penny    id.ID // 50% off a 0.67 item
	adminCtx context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithTx(t, nil)
}

func newFixtureWithTx(t *testing.T, wrap func(tx.Manager) tx.Manager) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	now := time.Now().UTC()

	f := &fixture{store: store, tenant: id.New(), locA: id.New(), locB: id.New()}
	require.NoError(t, store.Tenants().Create(ctx, &catalog.Tenant{
		ID: f.tenant, Name: "Corner Shop", SubscriptionStatus: catalog.StatusActive, CreatedAt: now, UpdatedAt: now,
	}))
	for _, loc := range []catalog.Location{
		{ID: f.locA, TenantID: f.tenant, Name: "Main Street", CreatedAt: now, UpdatedAt: now},
		{ID: f.locB, TenantID: f.tenant, Name: "Harbour", CreatedAt: now, UpdatedAt: now},
	} {
		loc := loc
		require.NoError(t, store.Locations().Create(ctx, &loc))
	}

	f.shirt = addProduct(t, store, f.tenant, "Shirt", "10", "M")
	f.mug = addProduct(t, store, f.tenant, "Mug", "0", "Large")
	f.penny = addProduct(t, store, f.tenant, "Sticker", "50", "Small")

	var txm tx.Manager = store
	if wrap != nil {
		txm = wrap(store)
	}
	products := store.Products()
	f.ledger = inventory.NewLedger(store.Inventory(), products, store)
	guard := security.NewGuard(store.Locations())
	f.svc = invoice.NewService(store.Invoices(), f.ledger, store.Sequences(), guard, txm, store.Audit(), invoice.DefaultConfig())
	f.adminCtx = principalCtx(security.RoleStoreAdmin, f.tenant, id.Nil())
	return f
}

func addProduct(t *testing.T, store *memory.Store, tenantID id.ID, name, discount, variant string) id.ID {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	p := &catalog.Product{
		ID: id.New(), TenantID: tenantID, Name: name, Category: "General",
		Discount: decimal.RequireFromString(discount), CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.Products().Create(ctx, p))
	v := catalog.Variant{ID: id.New(), ProductID: p.ID, VariantName: variant, CreatedAt: now}
	require.NoError(t, store.Products().CreateVariants(ctx, []catalog.Variant{v}))
	return v.ID
}

func principalCtx(role security.Role, tenantID, locationID id.ID) context.Context {
	return appctx.WithPrincipal(context.Background(), &appctx.Principal{
		UserID:     id.New(),
		Role:       string(role),
		TenantID:   tenantID,
		LocationID: locationID,
	})
}

func (f *fixture) stock(t *testing.T, location, variant id.ID, qty int64, cost, price string) {
	t.Helper()
	_, err := f.ledger.StockIn(context.Background(), inventory.StockInRequest{
		TenantID:     f.tenant,
		LocationID:   location,
		VariantID:    variant,
		Quantity:     qty,
		CostPrice:    types.MustMoney(cost),
		SellingPrice: types.MustMoney(price),
	})
	require.NoError(t, err)
}

func (f *fixture) quantity(t *testing.T, location, variant id.ID) int64 {
	t.Helper()
	check, err := f.ledger.CheckStock(context.Background(), location, variant)
	require.NoError(t, err)
	return check.Quantity
}

func (f *fixture) stockOuts(t *testing.T, location, variant id.ID) []inventory.StockMovement {
	t.Helper()
	movements, err := f.ledger.GetMovements(context.Background(), inventory.MovementFilter{LocationID: location, VariantID: &variant})
	require.NoError(t, err)
	var out []inventory.StockMovement
	for _, m := range movements {
		if m.MovementType == inventory.MovementStockOut {
			out = append(out, m)
		}
	}
	return out
}

func (f *fixture) invoiceCount(t *testing.T) int {
	t.Helper()
	_, total, err := f.svc.ListByTenant(f.adminCtx, f.tenant, 100, 0)
	require.NoError(t, err)
	return total
}

func assertMoney(t *testing.T, want string, got types.Money) {
	t.Helper()
	assert.Truef(t, types.MustMoney(want).Equal(got), "want %s, got %s", want, got.String())
}

func sale(location id.ID, lines ...invoice.LineRequest) invoice.CreateRequest {
	return invoice.CreateRequest{LocationID: location, Items: lines}
}

func line(variant id.ID, qty int64) invoice.LineRequest {
	return invoice.LineRequest{VariantID: variant, Quantity: qty}
}

func TestCreateInvoice_PricesDeductsAndLogs(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.locA, f.shirt, 10, "60", "100")

	tax := types.MustMoney("5")
	req := sale(f.locA, line(f.shirt, 3))
	req.TaxAmount = &tax
	req.CustomerName = "  Ana  "

	inv, err := f.svc.CreateInvoice(f.adminCtx, req)
	require.NoError(t, err)

	require.Len(t, inv.Items, 1)
	item := inv.Items[0]
	assertMoney(t, "90", item.UnitPrice)
	assertMoney(t, "270.00", item.Subtotal)
	assertMoney(t, "100", item.OriginalPrice)
	assertMoney(t, "60", item.CostPrice)
	assertMoney(t, "10", item.DiscountPercent)
	assert.Equal(t, "Shirt", item.ProductName)
	assert.Equal(t, "M", item.VariantName)
	assertMoney(t, "275.00", inv.TotalAmount)
	assert.True(t, inv.Reconciles())
	assert.Equal(t, "Main Street", inv.LocationName)
	require.NotNil(t, inv.CustomerName)
	assert.Equal(t, "Ana", *inv.CustomerName)
	assert.NotNil(t, inv.CreatedBy)

	assert.Equal(t, int64(7), f.quantity(t, f.locA, f.shirt))
	outs := f.stockOuts(t, f.locA, f.shirt)
	require.Len(t, outs, 1)
	assert.Equal(t, int64(3), outs[0].Quantity)
	assert.Equal(t, int64(10), outs[0].QuantityBefore)
	assert.Equal(t, int64(7), outs[0].QuantityAfter)
	require.NotNil(t, outs[0].ReferenceID)
	assert.Equal(t, inv.ID, *outs[0].ReferenceID)
	assert.True(t, outs[0].Consistent())
}

func TestCreateInvoice_ShortageWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.locA, f.shirt, 10, "60", "100")
	f.stock(t, f.locA, f.mug, 1, "3", "8")

	_, err := f.svc.CreateInvoice(f.adminCtx, sale(f.locA, line(f.shirt, 2), line(f.mug, 2)))

	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Contains(t, err.Error(), f.mug.String())
	assert.Equal(t, 0, f.invoiceCount(t))
	assert.Equal(t, int64(10), f.quantity(t, f.locA, f.shirt))
	assert.Equal(t, int64(1), f.quantity(t, f.locA, f.mug))
	assert.Empty(t, f.stockOuts(t, f.locA, f.shirt))
	assert.Empty(t, f.stockOuts(t, f.locA, f.mug))
}

func TestCreateInvoice_MissingInventoryRowIsInsufficient(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateInvoice(f.adminCtx, sale(f.locA, line(f.mug, 1)))

	assert.True(t, apperror.IsInsufficientStock(err))
	_, lookupErr := f.store.Inventory().Get(context.Background(), f.locA, f.mug)
	assert.True(t, apperror.IsNotFound(lookupErr), "no inventory row may be created")
}

func TestCreateInvoice_ExactQuantityEmptiesShelf(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.locA, f.mug, 4, "3", "8")

	_, err := f.svc.CreateInvoice(f.adminCtx, sale(f.locA, line(f.mug, 4)))

	require.NoError(t, err)
	assert.Equal(t, int64(0), f.quantity(t, f.locA, f.mug))
}

func TestCreateInvoice_RoundsOncePerLine(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.locA, f.penny, 10, "0.10", "0.67")

	inv, err := f.svc.CreateInvoice(f.adminCtx, sale(f.locA, line(f.penny, 3)))

	require.NoError(t, err)
	assertMoney(t, "0.335", inv.Items[0].UnitPrice)
	assertMoney(t, "1.01", inv.Items[0].Subtotal)
	assertMoney(t, "1.01", inv.TotalAmount)
	assert.True(t, inv.Reconciles())
}

func TestCreateInvoice_MergesRepeatedVariant(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.locA, f.mug, 5, "3", "8")

	inv, err := f.svc.CreateInvoice(f.adminCtx, sale(f.locA, line(f.mug, 2), line(f.mug, 1)))

	require.NoError(t, err)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, int64(3), inv.Items[0].Quantity)
	assert.Len(t, f.stockOuts(t, f.locA, f.mug), 1)
	assert.Equal(t, int64(2), f.quantity(t, f.locA, f.mug))
}

func TestCreateInvoice_RejectsMalformedCarts(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.locA, f.mug, 5, "3", "8")
	negative := types.MustMoney("-1")

	cases := map[string]invoice.CreateRequest{
		"empty":         sale(f.locA),
		"zero quantity": sale(f.locA, line(f.mug, 0)),
		"negative qty":  sale(f.locA, line(f.mug, -2)),
		"nil variant":   sale(f.locA, line(id.Nil(), 1)),
		"negative tax":  {LocationID: f.locA, Items: []invoice.LineRequest{line(f.mug, 1)}, TaxAmount: &negative},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateInvoice(f.adminCtx, req)
			assert.True(t, apperror.IsValidation(err), "got %v", err)
		})
	}
	assert.Equal(t, 0, f.invoiceCount(t))
	assert.Equal(t, int64(5), f.quantity(t, f.locA, f.mug))
}

func TestCreateInvoice_ConcurrentSalesDoNotOversell(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.locA, f.mug, 5, "3", "8")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := principalCtx(security.RoleLocationUser, f.tenant, f.locA)
			_, errs[i] = f.svc.CreateInvoice(ctx, sale(id.Nil(), line(f.mug, 3)))
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperror.IsInsufficientStock(err):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, int64(2), f.quantity(t, f.locA, f.mug))
	assert.Len(t, f.stockOuts(t, f.locA, f.mug), 1)
}

func TestCreateInvoice_NumbersAreUniqueAndSequential(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.locA, f.mug, 10, "3", "8")
	f.stock(t, f.locB, f.mug, 10, "3", "8")

	var wg sync.WaitGroup
	numbers := make([]string, 3)
	errs := make([]error, 3)
	locs := []id.ID{f.locA, f.locB, f.locA}
	for i := range numbers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := f.svc.CreateInvoice(f.adminCtx, sale(locs[i], line(f.mug, 1)))
			errs[i] = err
			if err == nil {
				numbers[i] = inv.InvoiceNumber
			}
		}(i)
	}
	wg.Wait()

	prefix := "INV-" + time.Now().UTC().Format("200601") + "-"
	seen := make(map[string]bool)
	for i, n := range numbers {
		require.NoError(t, errs[i])
		assert.True(t, strings.HasPrefix(n, prefix), n)
		assert.Len(t, n, len(prefix)+5)
		seen[strings.TrimPrefix(n, prefix)] = true
	}
	assert.Equal(t, map[string]bool{"00001": true, "00002": true, "00003": true}, seen)
}

func TestCreateInvoice_LocationUserCannotSellElsewhere(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.locB, f.mug, 5, "3", "8")
	ctx := principalCtx(security.RoleLocationUser, f.tenant, f.locA)

	_, err := f.svc.CreateInvoice(ctx, sale(f.locB, line(f.mug, 1)))

	assert.True(t, apperror.IsForbidden(err))
	assert.Equal(t, 0, f.invoiceCount(t))
	assert.Equal(t, int64(5), f.quantity(t, f.locB, f.mug))
}

func TestCreateInvoice_OtherTenantsLocationIsForbidden(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.locA, f.mug, 5, "3", "8")
	ctx := principalCtx(security.RoleStoreAdmin, id.New(), id.Nil())

	_, err := f.svc.CreateInvoice(ctx, sale(f.locA, line(f.mug, 1)))

	assert.True(t, apperror.IsForbidden(err))
}

func TestCreateInvoice_SuperAdminNeedsSelectedTenant(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.locA, f.mug, 5, "3", "8")

	_, err := f.svc.CreateInvoice(principalCtx(security.RoleSuperAdmin, id.Nil(), id.Nil()), sale(f.locA, line(f.mug, 1)))
	assert.True(t, apperror.IsValidation(err))

	inv, err := f.svc.CreateInvoice(principalCtx(security.RoleSuperAdmin, f.tenant, f.locA), sale(id.Nil(), line(f.mug, 1)))
	require.NoError(t, err)
	assert.Equal(t, f.locA, inv.LocationID)
}

// flakyTx fails the first n sale transactions with a serialization error.
type flakyTx struct {
	tx.Manager
	mu    sync.Mutex
	fails int
	calls int
}

func (m *flakyTx) RunInTransactionWithOptions(ctx context.Context, opts tx.Options, fn func(context.Context) error) error {
	m.mu.Lock()
	m.calls++
	fail := m.calls <= m.fails
	m.mu.Unlock()
	if fail {
		return apperror.NewConcurrentUpdate(nil)
	}
	return m.Manager.RunInTransactionWithOptions(ctx, opts, fn)
}

func TestCreateInvoice_RetriesConcurrentUpdate(t *testing.T) {
	flaky := &flakyTx{fails: 2}
	f := newFixtureWithTx(t, func(m tx.Manager) tx.Manager { flaky.Manager = m; return flaky })
	f.stock(t, f.locA, f.mug, 5, "3", "8")

	start := time.Now()
	_, err := f.svc.CreateInvoice(f.adminCtx, sale(f.locA, line(f.mug, 1)))

	require.NoError(t, err)
	assert.Equal(t, 3, flaky.calls)
	// Two waits, each at least half the configured first interval.
	assert.GreaterOrEqual(t, time.Since(start), invoice.DefaultConfig().RetryBackoff)
}

func TestCreateInvoice_GivesUpAfterMaxAttempts(t *testing.T) {
	flaky := &flakyTx{fails: 10}
	f := newFixtureWithTx(t, func(m tx.Manager) tx.Manager { flaky.Manager = m; return flaky })
	f.stock(t, f.locA, f.mug, 5, "3", "8")

	_, err := f.svc.CreateInvoice(f.adminCtx, sale(f.locA, line(f.mug, 1)))

	assert.True(t, apperror.HasCode(err, apperror.CodeConcurrentUpdate))
	assert.True(t, apperror.IsRetryable(err))
	assert.Equal(t, invoice.DefaultConfig().MaxAttempts, flaky.calls)
}

// failingRecorder accepts nothing, so a sale fails after all of its writes.
type failingRecorder struct{ audit.Recorder }

func (failingRecorder) Record(context.Context, audit.Entry) error { return errors.New("audit down") }

// failingLedger lets the first deduction of a sale through and fails the rest.
type failingLedger struct {
	*inventory.Ledger
	deductions int
}

func (l *failingLedger) DeductStock(ctx context.Context, req inventory.DeductRequest) (*inventory.Inventory, error) {
	l.deductions++
	if l.deductions > 1 {
		return nil, errors.New("disk full")
	}
	return l.Ledger.DeductStock(ctx, req)
}

func TestCreateInvoice_LateFailureRollsBackEverything(t *testing.T) {
	tests := []struct {
		name     string
		ledger   func(f *fixture) invoice.StockLedger
		recorder func(f *fixture) audit.Recorder
		wantErr  string
	}{
		{
			name:     "audit write fails",
			ledger:   func(f *fixture) invoice.StockLedger { return f.ledger },
			recorder: func(f *fixture) audit.Recorder { return failingRecorder{f.store.Audit()} },
			wantErr:  "audit down",
		},
		{
			name:     "second deduction fails",
			ledger:   func(f *fixture) invoice.StockLedger { return &failingLedger{Ledger: f.ledger} },
			recorder: func(f *fixture) audit.Recorder { return f.store.Audit() },
			wantErr:  "disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.stock(t, f.locA, f.mug, 5, "3", "8")
			f.stock(t, f.locA, f.shirt, 5, "60", "100")

			svc := invoice.NewService(f.store.Invoices(), tt.ledger(f), f.store.Sequences(),
				security.NewGuard(f.store.Locations()), f.store, tt.recorder(f), invoice.DefaultConfig())
			_, err := svc.CreateInvoice(f.adminCtx, sale(f.locA, line(f.mug, 2), line(f.shirt, 1)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			assert.Zero(t, f.invoiceCount(t))
			assert.Equal(t, int64(5), f.quantity(t, f.locA, f.mug))
			assert.Equal(t, int64(5), f.quantity(t, f.locA, f.shirt))
			assert.Empty(t, f.stockOuts(t, f.locA, f.mug))
			assert.Empty(t, f.stockOuts(t, f.locA, f.shirt))

			// The reserved number was released with the rest.
			inv, err := f.svc.CreateInvoice(f.adminCtx, sale(f.locA, line(f.mug, 1)))
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(inv.InvoiceNumber, "-00001"), inv.InvoiceNumber)
		})
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.locA, f.mug, 5, "3", "8")
	inv, err := f.svc.CreateInvoice(f.adminCtx, sale(f.locA, line(f.mug, 2)))
	require.NoError(t, err)

	entries, err := f.svc.History(f.adminCtx, inv.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionSale, entries[0].Action)
	assert.Contains(t, string(entries[0].Payload), inv.InvoiceNumber)

	_, err = f.svc.History(principalCtx(security.RoleStoreAdmin, id.New(), id.Nil()), inv.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestGetByID_ScopedToCaller(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.locA, f.mug, 5, "3", "8")
	inv, err := f.svc.CreateInvoice(f.adminCtx, sale(f.locA, line(f.mug, 1)))
	require.NoError(t, err)

	got, err := f.svc.GetByID(principalCtx(security.RoleLocationUser, f.tenant, f.locA), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.InvoiceNumber, got.InvoiceNumber)
	require.Len(t, got.Items, 1)

	_, err = f.svc.GetByID(principalCtx(security.RoleLocationUser, f.tenant, f.locB), inv.ID)
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.svc.GetByID(principalCtx(security.RoleStoreAdmin, id.New(), id.Nil()), inv.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestListings_AndReports(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.locA, f.shirt, 10, "60", "100")
	f.stock(t, f.locB, f.mug, 10, "3", "8")

	_, err := f.svc.CreateInvoice(f.adminCtx, sale(f.locA, line(f.shirt, 2))) // 180, cost 120
	require.NoError(t, err)
	tax := types.MustMoney("1.50")
	req := sale(f.locB, line(f.mug, 3)) // 24, cost 9
	req.TaxAmount = &tax
	_, err = f.svc.CreateInvoice(f.adminCtx, req)
	require.NoError(t, err)

	byLoc, total, err := f.svc.ListByLocation(f.adminCtx, id.Nil(), f.locB, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Harbour", byLoc[0].LocationName)

	// A location user listing the whole tenant only sees its own location.
	_, total, err = f.svc.ListByTenant(principalCtx(security.RoleLocationUser, f.tenant, f.locA), id.Nil(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	now := time.Now().UTC()
	_, total, err = f.svc.ListByDateRange(f.adminCtx, id.Nil(), nil, now.Add(-time.Hour), now.Add(time.Hour), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, _, err = f.svc.ListByDateRange(f.adminCtx, id.Nil(), nil, now, now.Add(-time.Hour), 10, 0)
	assert.True(t, apperror.IsValidation(err))

	profit, err := f.svc.CalculateProfit(f.adminCtx, id.Nil(), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, profit.InvoiceCount)
	assertMoney(t, "204", profit.Revenue)
	assertMoney(t, "129", profit.Cost)
	assertMoney(t, "75", profit.Profit)

	daily, err := f.svc.DailySales(f.adminCtx, id.Nil(), &f.locB, now)
	require.NoError(t, err)
	assert.Equal(t, now.Format(time.DateOnly), daily.Date)
	assert.Equal(t, 1, daily.InvoiceCount)
	assertMoney(t, "25.50", daily.TotalRevenue)
}
