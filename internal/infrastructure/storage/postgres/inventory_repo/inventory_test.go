package inventory_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/core/id"
	"retailpos/internal/domain/inventory"
)

func TestLockManyQuery_LocksInVariantOrder(t *testing.T) {
	repo := New(nil)
	loc := id.New()
	a, b := id.New(), id.New()

	sql, args, err := repo.lockManyQuery(loc, []id.ID{a, b}).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, tenant_id, location_id, variant_id, quantity, cost_price, selling_price, created_at, updated_at "+
		"FROM inventory WHERE location_id = $1 AND variant_id IN ($2,$3) ORDER BY variant_id FOR UPDATE", sql)
	require.Len(t, args, 3)
	assert.Equal(t, loc.String(), args[0])
	assert.Equal(t, a, args[1])
	assert.Equal(t, b, args[2])
}

func TestMovementsQuery(t *testing.T) {
	repo := New(nil)
	loc, variant := id.New(), id.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	sql, args, err := repo.movementsQuery(inventory.MovementFilter{
		LocationID: loc, VariantID: &variant, From: &from, Limit: 20, Offset: 40,
	}).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, tenant_id, location_id, variant_id, movement_type, quantity, unit_cost_price, unit_selling_price, "+
		"supplier, reference_id, quantity_before, quantity_after, created_at FROM stock_movements "+
		"WHERE location_id = $1 AND variant_id = $2 AND created_at >= $3 "+
		"ORDER BY created_at DESC, id DESC LIMIT 20 OFFSET 40", sql)
	assert.Len(t, args, 3)
}

func TestStockQuery_Filters(t *testing.T) {
	repo := New(nil)
	tenant, loc := id.New(), id.New()

	sql, args, err := repo.stockQuery(inventory.StockFilter{
		TenantID: tenant, LocationID: &loc, Category: "Apparel", Search: "tee",
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM inventory i JOIN product_variants v ON v.id = i.variant_id")
	assert.Contains(t, sql, "WHERE i.tenant_id = $1 AND i.location_id = $2 AND lower(p.category) = lower($3) AND (p.name ILIKE $4 OR v.variant_name ILIKE $5)")
	assert.Contains(t, sql, "ORDER BY p.name, v.variant_name, l.name")
	assert.Equal(t, []any{tenant.String(), loc.String(), "Apparel", "%tee%", "%tee%"}, args)
}
