// Package invoice_repo provides the PostgreSQL invoice repository.
package invoice_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/invoice"
	"retailpos/internal/infrastructure/storage/postgres"
)

const (
	invoicesTable = "invoices"
	itemsTable    = "invoice_items"

	uniqueNumberConstraint = "uq_invoices_tenant_number"
)

var headerColumns = []string{
	"id", "tenant_id", "location_id", "invoice_number", "customer_name",
	"total_amount", "tax_amount", "change_amount", "created_by", "created_at",
}

var itemColumns = []string{
	"id", "invoice_id", "variant_id", "quantity", "unit_price",
	"cost_price", "original_price", "discount_percent", "subtotal",
}

// Repo implements invoice.Repository.
type Repo struct {
	txm     *postgres.TxManager
	batch   *postgres.BatchInserter
	builder squirrel.StatementBuilderType
}

var _ invoice.Repository = (*Repo)(nil)

// New creates the invoice repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		txm:     txm,
		batch:   postgres.NewBatchInserter(txm),
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists the header and all items. It must run inside the sale
// transaction.
func (r *Repo) Create(ctx context.Context, inv *invoice.Invoice) error {
	q := r.builder.Insert(invoicesTable).
		Columns(headerColumns...).
		Values(inv.ID, inv.TenantID, inv.LocationID, inv.InvoiceNumber, inv.CustomerName,
			inv.TotalAmount, inv.TaxAmount, inv.ChangeAmount, inv.CreatedBy, inv.CreatedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err, uniqueNumberConstraint) {
			return apperror.NewDuplicate("invoice", "invoice_number", inv.InvoiceNumber).WithCause(err)
		}
		return postgres.TranslateError(fmt.Errorf("insert invoice: %w", err), "invoice")
	}

	rows := make([][]any, 0, len(inv.Items))
	for _, it := range inv.Items {
		rows = append(rows, []any{
			it.ID, inv.ID, it.VariantID, it.Quantity, it.UnitPrice,
			it.CostPrice, it.OriginalPrice, it.DiscountPercent, it.Subtotal,
		})
	}
	if err := r.batch.BulkInsert(ctx, itemsTable, itemColumns, rows); err != nil {
		return postgres.TranslateError(fmt.Errorf("insert invoice items: %w", err), "invoice_item")
	}
	return nil
}

func (r *Repo) headerSelect() squirrel.SelectBuilder {
	cols := make([]string, 0, len(headerColumns)+1)
	for _, c := range headerColumns {
		cols = append(cols, "i."+c)
	}
	cols = append(cols, "l.name AS location_name")
	return r.builder.Select(cols...).
		From(invoicesTable + " i").
		Join("locations l ON l.id = i.location_id")
}

func (r *Repo) itemsQuery(invoiceID id.ID) squirrel.SelectBuilder {
	cols := make([]string, 0, len(itemColumns)+3)
	for _, c := range itemColumns {
		cols = append(cols, "it."+c)
	}
	cols = append(cols, "p.id AS product_id", "p.name AS product_name", "v.variant_name")
	return r.builder.Select(cols...).
		From(itemsTable + " it").
		Join("product_variants v ON v.id = it.variant_id").
		Join("products p ON p.id = v.product_id").
		Where(squirrel.Eq{"it.invoice_id": invoiceID}).
		OrderBy("p.name", "v.variant_name")
}

// GetByID returns the invoice with hydrated items.
func (r *Repo) GetByID(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	sql, args, err := r.headerSelect().Where(squirrel.Eq{"i.id": invoiceID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var inv invoice.Invoice
	if err := pgxscan.Get(ctx, querier, &inv, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("invoice", invoiceID)
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	sql, args, err = r.itemsQuery(invoiceID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}
	inv.Items = []invoice.Item{}
	if err := pgxscan.Select(ctx, querier, &inv.Items, sql, args...); err != nil {
		return nil, fmt.Errorf("select invoice items: %w", err)
	}
	return &inv, nil
}

func applyFilter(q squirrel.SelectBuilder, filter invoice.ListFilter) squirrel.SelectBuilder {
	q = q.Where(squirrel.Eq{"i.tenant_id": filter.TenantID})
	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"i.location_id": *filter.LocationID})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"i.created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"i.created_at": *filter.To})
	}
	return q
}

func (r *Repo) listQuery(filter invoice.ListFilter) squirrel.SelectBuilder {
	q := applyFilter(r.headerSelect(), filter).OrderBy("i.created_at DESC", "i.id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

// List returns headers newest first and the total match count.
func (r *Repo) List(ctx context.Context, filter invoice.ListFilter) ([]invoice.Invoice, int, error) {
	querier := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := applyFilter(r.builder.Select("COUNT(*)").From(invoicesTable+" i"), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	sql, args, err := r.listQuery(filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}
	invoices := []invoice.Invoice{}
	if err := pgxscan.Select(ctx, querier, &invoices, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, total, nil
}

func (r *Repo) summaryQuery(filter invoice.ListFilter) squirrel.SelectBuilder {
	matched := applyFilter(r.builder.Select("i.id", "i.total_amount").From(invoicesTable+" i"), filter)
	return r.builder.
		Select(
			"COUNT(*) AS invoice_count",
			"COALESCE(SUM(m.total_amount), 0) AS gross",
			"COALESCE(SUM(t.revenue), 0) AS revenue",
			"COALESCE(SUM(t.cost), 0) AS cost",
		).
		FromSelect(matched, "m").
		LeftJoin("LATERAL (SELECT SUM(it.subtotal) AS revenue, SUM(it.cost_price * it.quantity) AS cost " +
			"FROM invoice_items it WHERE it.invoice_id = m.id) t ON TRUE")
}

// Summarize aggregates the invoices matched by filter.
func (r *Repo) Summarize(ctx context.Context, filter invoice.ListFilter) (*invoice.Summary, error) {
	sql, args, err := r.summaryQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build summary query: %w", err)
	}

	sum := &invoice.Summary{Revenue: types.Zero(), Cost: types.Zero(), Gross: types.Zero()}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), sum, sql, args...); err != nil {
		return nil, fmt.Errorf("summarize invoices: %w", err)
	}
	return sum, nil
}
