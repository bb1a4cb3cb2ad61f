package catalog_repo

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/core/id"
	"retailpos/internal/domain/catalog"
)

func TestBaseRepo_InsertUsesModelColumns(t *testing.T) {
	repo := NewLocationRepo(nil)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	loc := &catalog.Location{ID: id.New(), TenantID: id.New(), Name: "Main", CreatedAt: now, UpdatedAt: now}

	sql, args, err := repo.insertQuery(loc).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO locations (id,tenant_id,name,address,phone,created_at,updated_at) "+
		"VALUES ($1,$2,$3,$4,$5,$6,$7)", sql)
	require.Len(t, args, 7)
	assert.Equal(t, loc.ID, args[0])
	assert.Equal(t, "Main", args[2])
}

func TestBaseRepo_UpdateSkipsImmutableColumns(t *testing.T) {
	repo := NewTenantRepo(nil)
	tenant := &catalog.Tenant{ID: id.New(), Name: "Acme", SubscriptionStatus: catalog.StatusActive}

	q, err := repo.updateQuery(tenant)
	require.NoError(t, err)
	sql, args, err := q.ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE tenants SET name = $1, subscription_status = $2, updated_at = $3 WHERE id = $4", sql)
	require.Len(t, args, 4)
	assert.Equal(t, "Acme", args[0])
	assert.Equal(t, tenant.ID.String(), args[3])
}

func TestTenantListQuery(t *testing.T) {
	repo := NewTenantRepo(nil)

	sql, args, err := repo.listQuery(catalog.TenantFilter{
		Status: catalog.StatusTrial, Search: "acme", Limit: 10,
	}).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, name, subscription_status, created_at, updated_at FROM tenants "+
		"WHERE subscription_status = $1 AND name ILIKE $2 ORDER BY created_at DESC, id DESC LIMIT 10", sql)
	assert.Equal(t, []any{"trial", "%acme%"}, args)
}

func TestProductListQuery_SearchCoversVariants(t *testing.T) {
	repo := NewProductRepo(nil)
	tenant := id.New()

	sql, args, err := repo.listQuery(catalog.ProductFilter{
		TenantID: tenant, Category: "Shoes", Search: "red", Limit: 5, Offset: 5,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE tenant_id = $1 AND lower(category) = lower($2) AND "+
		"(name ILIKE $3 OR product_code ILIKE $4 OR EXISTS (SELECT 1 FROM product_variants v "+
		"WHERE v.product_id = products.id AND v.variant_name ILIKE $5))")
	assert.Contains(t, sql, "ORDER BY name, id LIMIT 5 OFFSET 5")
	assert.Equal(t, []any{tenant.String(), "Shoes", "%red%", "%red%", "%red%"}, args)
}

func TestHasSalesQuery_NumbersNestedPlaceholders(t *testing.T) {
	repo := NewProductRepo(nil)
	variant := id.New()

	sql, args, err := repo.hasSalesQuery(squirrel.Eq{"it.variant_id": variant}).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT EXISTS (SELECT 1 FROM invoice_items it WHERE it.variant_id = $1 LIMIT 1)", sql)
	assert.Equal(t, []any{variant.String()}, args)
}

func TestDuplicateVariantName(t *testing.T) {
	product := id.New()
	variants := []catalog.Variant{
		{ProductID: product, VariantName: "Small"},
		{ProductID: product, VariantName: "Large"},
		{ProductID: product, VariantName: "small"},
	}
	assert.Equal(t, "small", duplicateVariantName(variants))
	assert.Equal(t, "Small", duplicateVariantName(variants[:2]))
}

func TestProductCodeUniqueHandler(t *testing.T) {
	repo := NewProductRepo(nil)
	code := "SKU-1"
	h := repo.uniques[uniqueProductCode]
	require.NotNil(t, h)

	err := h(&catalog.Product{ProductCode: &code, Discount: decimal.Zero})
	assert.ErrorContains(t, err, "product with this product_code already exists")
}
