package invoice_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/core/id"
	"retailpos/internal/domain/invoice"
)

func TestListQuery_NewestFirstWithPaging(t *testing.T) {
	repo := New(nil)
	tenant, loc := id.New(), id.New()
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	sql, args, err := repo.listQuery(invoice.ListFilter{
		TenantID: tenant, LocationID: &loc, To: &to, Limit: 50, Offset: 100,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM invoices i JOIN locations l ON l.id = i.location_id")
	assert.Contains(t, sql, "WHERE i.tenant_id = $1 AND i.location_id = $2 AND i.created_at <= $3")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY i.created_at DESC, i.id DESC LIMIT 50 OFFSET 100"), sql)
	assert.Equal(t, []any{tenant.String(), loc.String(), to}, args)
}

func TestItemsQuery_JoinsCatalogNames(t *testing.T) {
	repo := New(nil)
	invID := id.New()

	sql, args, err := repo.itemsQuery(invID).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "p.id AS product_id, p.name AS product_name, v.variant_name")
	assert.Contains(t, sql, "JOIN product_variants v ON v.id = it.variant_id JOIN products p ON p.id = v.product_id")
	assert.Contains(t, sql, "WHERE it.invoice_id = $1")
	assert.Equal(t, []any{invID.String()}, args)
}

func TestSummaryQuery_AggregatesMatchedInvoices(t *testing.T) {
	repo := New(nil)
	tenant := id.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	sql, args, err := repo.summaryQuery(invoice.ListFilter{TenantID: tenant, From: &from}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "COUNT(*) AS invoice_count")
	assert.Contains(t, sql, "FROM (SELECT i.id, i.total_amount FROM invoices i WHERE i.tenant_id = $1 AND i.created_at >= $2) AS m")
	assert.Contains(t, sql, "SUM(it.cost_price * it.quantity) AS cost")
	assert.Equal(t, []any{tenant.String(), from}, args)
}
