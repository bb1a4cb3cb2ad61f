package catalog_test

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
	"retailpos/internal/domain/invoice"
	"retailpos/internal/infrastructure/storage/memory"
)

type provisioner struct {
	err     error
	tenants []id.ID
}

func (p *provisioner) CreateStoreAdmin(_ context.Context, tenantID id.ID, _, _, _ string) (id.ID, error) {
	if p.err != nil {
		return id.Nil(), p.err
	}
	p.tenants = append(p.tenants, tenantID)
	return id.New(), nil
}

func newCatalog(t *testing.T) (*catalog.Service, *memory.Store, *provisioner) {
	t.Helper()
	store := memory.New()
	locations := store.Locations()
	admins := &provisioner{}
	svc := catalog.NewService(store.Tenants(), locations, store.Products(), locations, admins, store, store.Audit())
	return svc, store, admins
}

func as(role security.Role, tenantID, locationID id.ID) context.Context {
	return appctx.WithPrincipal(context.Background(), &appctx.Principal{
		UserID: id.New(), Role: string(role), TenantID: tenantID, LocationID: locationID,
	})
}

func signup(t *testing.T, svc *catalog.Service, name string) *catalog.Tenant {
	t.Helper()
	tenant, _, err := svc.Signup(context.Background(), catalog.SignupRequest{
		TenantName: name, AdminEmail: "owner@example.com", AdminPassword: "secret-pass",
	})
	require.NoError(t, err)
	return tenant
}

func TestSignup(t *testing.T) {
	svc, _, admins := newCatalog(t)

	tenant := signup(t, svc, "  Corner Shop ")
	assert.Equal(t, "Corner Shop", tenant.Name)
	assert.Equal(t, catalog.StatusTrial, tenant.SubscriptionStatus)
	assert.Equal(t, []id.ID{tenant.ID}, admins.tenants)

	_, _, err := svc.Signup(context.Background(), catalog.SignupRequest{TenantName: " "})
	assert.True(t, apperror.IsValidation(err))
}

func TestSignup_RollsBackWhenAdminFails(t *testing.T) {
	svc, store, admins := newCatalog(t)
	admins.err = apperror.NewDuplicate("user", "email", "owner@example.com")

	_, _, err := svc.Signup(context.Background(), catalog.SignupRequest{TenantName: "Shop"})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	_, total, err := store.Tenants().List(context.Background(), catalog.TenantFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestTenantAdministration(t *testing.T) {
	svc, _, _ := newCatalog(t)
	a := signup(t, svc, "A")
	b := signup(t, svc, "B")
	root := as(security.RoleSuperAdmin, id.Nil(), id.Nil())
	ownerA := as(security.RoleStoreAdmin, a.ID, id.Nil())

	_, total, err := svc.ListTenants(root, catalog.TenantFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, _, err = svc.ListTenants(ownerA, catalog.TenantFilter{})
	assert.True(t, apperror.IsForbidden(err))

	_, err = svc.GetTenant(ownerA, b.ID)
	assert.True(t, apperror.IsForbidden(err))

	name := "A Renamed"
	updated, err := svc.UpdateTenant(ownerA, id.Nil(), catalog.TenantUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	active := catalog.StatusActive
	_, err = svc.UpdateTenant(ownerA, a.ID, catalog.TenantUpdate{Status: &active})
	assert.True(t, apperror.IsForbidden(err))

	updated, err = svc.UpdateTenant(root, a.ID, catalog.TenantUpdate{Status: &active})
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusActive, updated.SubscriptionStatus)

	assert.True(t, apperror.IsForbidden(svc.DeleteTenant(ownerA, b.ID)))
	require.NoError(t, svc.DeleteTenant(root, b.ID))
	_, err = svc.GetTenant(root, b.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestLocations(t *testing.T) {
	svc, _, _ := newCatalog(t)
	tenant := signup(t, svc, "Shop")
	owner := as(security.RoleStoreAdmin, tenant.ID, id.Nil())

	main, err := svc.CreateLocation(owner, catalog.LocationRequest{Name: "Main", Address: " 1 High St "})
	require.NoError(t, err)
	require.NotNil(t, main.Address)
	assert.Equal(t, "1 High St", *main.Address)
	assert.Nil(t, main.Phone)
	harbour, err := svc.CreateLocation(owner, catalog.LocationRequest{Name: "Harbour"})
	require.NoError(t, err)

	_, err = svc.CreateLocation(owner, catalog.LocationRequest{Name: ""})
	assert.True(t, apperror.IsValidation(err))

	clerk := as(security.RoleLocationUser, tenant.ID, main.ID)
	_, err = svc.CreateLocation(clerk, catalog.LocationRequest{Name: "Kiosk"})
	assert.True(t, apperror.IsForbidden(err))

	all, err := svc.ListLocations(owner, id.Nil())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.ListLocations(clerk, id.Nil())
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, main.ID, mine[0].ID)

	_, err = svc.GetLocation(clerk, harbour.ID)
	assert.True(t, apperror.IsForbidden(err))

	renamed, err := svc.UpdateLocation(owner, harbour.ID, catalog.LocationRequest{Name: "Harbour Front", Phone: "555"})
	require.NoError(t, err)
	assert.Equal(t, "Harbour Front", renamed.Name)

	outsider := as(security.RoleStoreAdmin, id.New(), id.Nil())
	assert.True(t, apperror.IsForbidden(svc.DeleteLocation(outsider, harbour.ID)))
	require.NoError(t, svc.DeleteLocation(owner, harbour.ID))
	_, err = svc.GetLocation(owner, harbour.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestProducts(t *testing.T) {
	svc, store, _ := newCatalog(t)
	tenant := signup(t, svc, "Shop")
	other := signup(t, svc, "Other")
	owner := as(security.RoleStoreAdmin, tenant.ID, id.Nil())

	p, err := svc.CreateProduct(owner, catalog.ProductRequest{
		Name: "Tee", Category: "Apparel", ProductCode: "TEE-1",
		Discount: decimal.NewFromInt(10), Variants: []string{"S", " M ", ""},
	})
	require.NoError(t, err)
	require.Len(t, p.Variants, 2)
	assert.Equal(t, "M", p.Variants[1].VariantName)

	_, err = svc.CreateProduct(owner, catalog.ProductRequest{Name: "Cap", Category: "Hats"})
	assert.True(t, apperror.IsValidation(err), "a product needs a variant")

	_, err = svc.CreateProduct(owner, catalog.ProductRequest{Name: "Cap", Category: "Hats", Variants: []string{"One", "one"}})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	_, err = svc.CreateProduct(owner, catalog.ProductRequest{Name: "Cap", Category: "Hats", Discount: decimal.NewFromInt(101), Variants: []string{"One"}})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.CreateProduct(owner, catalog.ProductRequest{Name: "Dup", Category: "X", ProductCode: "TEE-1", Variants: []string{"A"}})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	found, err := svc.GetProductByCode(owner, id.Nil(), "TEE-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)

	list, total, err := svc.ListProducts(owner, catalog.ProductFilter{Search: "tee"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list[0].Variants, 2)

	_, err = svc.GetProduct(as(security.RoleStoreAdmin, other.ID, id.Nil()), p.ID)
	assert.True(t, apperror.IsNotFound(err), "other tenants do not see the product")

	discount := decimal.NewFromInt(25)
	updated, err := svc.UpdateProduct(owner, p.ID, catalog.ProductUpdate{Discount: &discount})
	require.NoError(t, err)
	assert.True(t, discount.Equal(updated.Discount))

	v, err := svc.AddVariant(owner, p.ID, "L")
	require.NoError(t, err)
	_, err = svc.AddVariant(owner, p.ID, "l")
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	require.NoError(t, svc.DeleteVariant(owner, v.ID))

	info, err := store.Products().GetVariantInfo(context.Background(), p.Variants[0].ID)
	require.NoError(t, err)
	assert.True(t, discount.Equal(info.Discount))
}

func TestDeleteVariant_RefusesSoldVariant(t *testing.T) {
	svc, store, _ := newCatalog(t)
	tenant := signup(t, svc, "Shop")
	owner := as(security.RoleStoreAdmin, tenant.ID, id.Nil())
	loc, err := svc.CreateLocation(owner, catalog.LocationRequest{Name: "Main"})
	require.NoError(t, err)
	p, err := svc.CreateProduct(owner, catalog.ProductRequest{Name: "Mug", Category: "Kitchen", Variants: []string{"Blue", "Red"}})
	require.NoError(t, err)
	blue, red := p.Variants[0].ID, p.Variants[1].ID

	ledger := inventory.NewLedger(store.Inventory(), store.Products(), store)
	for _, v := range []id.ID{blue, red} {
		_, err = ledger.StockIn(context.Background(), inventory.StockInRequest{
			TenantID: tenant.ID, LocationID: loc.ID, VariantID: v, Quantity: 3,
			CostPrice: types.MustMoney("2"), SellingPrice: types.MustMoney("5"),
		})
		require.NoError(t, err)
	}
	require.NoError(t, store.Invoices().Create(context.Background(), &invoice.Invoice{
		ID: id.New(), TenantID: tenant.ID, LocationID: loc.ID, InvoiceNumber: "INV-000001-00001",
		TotalAmount: types.MustMoney("5"), TaxAmount: types.Zero(), CreatedAt: time.Now().UTC(),
		Items: []invoice.Item{{
			ID: id.New(), VariantID: blue, Quantity: 1,
			UnitPrice: types.MustMoney("5"), CostPrice: types.MustMoney("2"), OriginalPrice: types.MustMoney("5"),
			Subtotal: types.MustMoney("5"),
		}},
	}))

	err = svc.DeleteVariant(owner, blue)
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	// Unsold variants go, together with their stock.
	require.NoError(t, svc.DeleteVariant(owner, red))
	_, err = store.Inventory().Get(context.Background(), loc.ID, red)
	assert.True(t, apperror.IsNotFound(err))

	clerk := as(security.RoleLocationUser, tenant.ID, loc.ID)
	err = svc.DeleteProduct(clerk, p.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict), "sold products stay")
}

func TestProductWrites_OpenToLocationUsers(t *testing.T) {
	svc, _, _ := newCatalog(t)
	tenant := signup(t, svc, "Shop")
	other := signup(t, svc, "Rival")
	owner := as(security.RoleStoreAdmin, tenant.ID, id.Nil())
	loc, err := svc.CreateLocation(owner, catalog.LocationRequest{Name: "Main"})
	require.NoError(t, err)
	clerk := as(security.RoleLocationUser, tenant.ID, loc.ID)

	p, err := svc.CreateProduct(clerk, catalog.ProductRequest{Name: "Cap", Category: "Hats", Variants: []string{"One size"}})
	require.NoError(t, err)
	name := "Baseball cap"
	_, err = svc.UpdateProduct(clerk, p.ID, catalog.ProductUpdate{Name: &name})
	require.NoError(t, err)
	v, err := svc.AddVariant(clerk, p.ID, "Kids")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteVariant(clerk, v.ID))

	rival := as(security.RoleStoreAdmin, other.ID, id.Nil())
	assert.True(t, apperror.IsNotFound(svc.DeleteProduct(rival, p.ID)))

	require.NoError(t, svc.DeleteProduct(clerk, p.ID))
	_, err = svc.GetProduct(owner, p.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestSystemOverview(t *testing.T) {
	svc, _, _ := newCatalog(t)
	tenant := signup(t, svc, "Shop")
	_, err := svc.CreateLocation(as(security.RoleStoreAdmin, tenant.ID, id.Nil()), catalog.LocationRequest{Name: "Main"})
	require.NoError(t, err)

	_, err = svc.SystemOverview(as(security.RoleStoreAdmin, tenant.ID, id.Nil()))
	assert.True(t, apperror.IsForbidden(err))

	ov, err := svc.SystemOverview(as(security.RoleSuperAdmin, id.Nil(), id.Nil()))
	require.NoError(t, err)
	assert.Equal(t, 1, ov.Tenants)
	assert.Equal(t, 1, ov.Locations)
	assert.Equal(t, 30, ov.RecentWindowDays)
}

func TestUnauthenticatedCallsAreRejected(t *testing.T) {
	svc, _, _ := newCatalog(t)
	_, err := svc.ListLocations(context.Background(), id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}
