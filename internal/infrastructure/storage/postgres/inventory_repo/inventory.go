// Package inventory_repo provides the PostgreSQL stock ledger repository.
package inventory_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/domain/inventory"
	"retailpos/internal/infrastructure/storage/postgres"
)

const (
	inventoryTable = "inventory"
	movementsTable = "stock_movements"
)

var inventoryColumns = []string{
	"id", "tenant_id", "location_id", "variant_id",
	"quantity", "cost_price", "selling_price", "created_at", "updated_at",
}

var movementColumns = []string{
	"id", "tenant_id", "location_id", "variant_id", "movement_type", "quantity",
	"unit_cost_price", "unit_selling_price", "supplier", "reference_id",
	"quantity_before", "quantity_after", "created_at",
}

// Repo implements inventory.Repository.
type Repo struct {
	txm     *postgres.TxManager
	batch   *postgres.BatchInserter
	builder squirrel.StatementBuilderType
}

var _ inventory.Repository = (*Repo)(nil)

// New creates the stock ledger repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		txm:     txm,
		batch:   postgres.NewBatchInserter(txm),
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *Repo) selectRow(locationID, variantID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(inventoryColumns...).
		From(inventoryTable).
		Where(squirrel.Eq{"location_id": locationID, "variant_id": variantID})
}

func (r *Repo) getOne(ctx context.Context, q squirrel.SelectBuilder, variantID id.ID) (*inventory.Inventory, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var inv inventory.Inventory
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &inv, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("inventory", variantID)
		}
		return nil, postgres.TranslateError(fmt.Errorf("get inventory: %w", err), "inventory")
	}
	return &inv, nil
}

// Get returns the inventory row or a NotFound AppError.
func (r *Repo) Get(ctx context.Context, locationID, variantID id.ID) (*inventory.Inventory, error) {
	return r.getOne(ctx, r.selectRow(locationID, variantID), variantID)
}

// GetForUpdate returns the row locked until the transaction ends.
func (r *Repo) GetForUpdate(ctx context.Context, locationID, variantID id.ID) (*inventory.Inventory, error) {
	return r.getOne(ctx, r.selectRow(locationID, variantID).Suffix("FOR UPDATE"), variantID)
}

// lockManyQuery locks rows in variant order so that concurrent sales over
// overlapping carts acquire them in the same sequence.
func (r *Repo) lockManyQuery(locationID id.ID, variantIDs []id.ID) squirrel.SelectBuilder {
	return r.builder.Select(inventoryColumns...).
		From(inventoryTable).
		Where(squirrel.Eq{"location_id": locationID}).
		Where(squirrel.Eq{"variant_id": variantIDs}).
		OrderBy("variant_id").
		Suffix("FOR UPDATE")
}

// LockMany locks the existing rows for variantIDs.
func (r *Repo) LockMany(ctx context.Context, locationID id.ID, variantIDs []id.ID) (map[id.ID]*inventory.Inventory, error) {
	out := make(map[id.ID]*inventory.Inventory, len(variantIDs))
	if len(variantIDs) == 0 {
		return out, nil
	}

	sql, args, err := r.lockManyQuery(locationID, variantIDs).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []inventory.Inventory
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("lock inventory: %w", err), "inventory")
	}
	for i := range rows {
		out[rows[i].VariantID] = &rows[i]
	}
	return out, nil
}

// Insert creates a row unless one already exists for (location, variant).
func (r *Repo) Insert(ctx context.Context, inv *inventory.Inventory) (bool, error) {
	q := r.builder.Insert(inventoryTable).
		Columns(inventoryColumns...).
		Values(inv.ID, inv.TenantID, inv.LocationID, inv.VariantID,
			inv.Quantity, inv.CostPrice, inv.SellingPrice, inv.CreatedAt, inv.UpdatedAt).
		Suffix("ON CONFLICT (location_id, variant_id) DO NOTHING")

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, postgres.TranslateError(fmt.Errorf("insert inventory: %w", err), "inventory")
	}
	return tag.RowsAffected() == 1, nil
}

// Update persists quantity and prices.
func (r *Repo) Update(ctx context.Context, inv *inventory.Inventory) error {
	q := r.builder.Update(inventoryTable).
		Set("quantity", inv.Quantity).
		Set("cost_price", inv.CostPrice).
		Set("selling_price", inv.SellingPrice).
		Set("updated_at", inv.UpdatedAt).
		Where(squirrel.Eq{"id": inv.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("update inventory: %w", err), "inventory")
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("inventory", inv.VariantID)
	}
	return nil
}

// CreateMovements appends movements through the batch inserter.
func (r *Repo) CreateMovements(ctx context.Context, movements []inventory.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, []any{
			m.ID, m.TenantID, m.LocationID, m.VariantID, string(m.MovementType), m.Quantity,
			m.UnitCostPrice, m.UnitSellingPrice, m.Supplier, m.ReferenceID,
			m.QuantityBefore, m.QuantityAfter, m.CreatedAt,
		})
	}

	if r.txm.GetTx(ctx) == nil {
		return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			return r.batch.BulkInsert(ctx, movementsTable, movementColumns, rows)
		})
	}
	if err := r.batch.BulkInsert(ctx, movementsTable, movementColumns, rows); err != nil {
		return postgres.TranslateError(fmt.Errorf("insert movements: %w", err), "stock_movement")
	}
	return nil
}

func (r *Repo) movementsQuery(filter inventory.MovementFilter) squirrel.SelectBuilder {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"location_id": filter.LocationID})

	if filter.VariantID != nil {
		q = q.Where(squirrel.Eq{"variant_id": *filter.VariantID})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.To})
	}

	q = q.OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

// ListMovements returns movements newest first.
func (r *Repo) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	sql, args, err := r.movementsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []inventory.StockMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

func (r *Repo) stockQuery(filter inventory.StockFilter) squirrel.SelectBuilder {
	q := r.builder.Select(
		"i.id AS inventory_id", "i.location_id", "l.name AS location_name",
		"p.id AS product_id", "p.name AS product_name", "p.category",
		"i.variant_id", "v.variant_name",
		"i.quantity", "i.cost_price", "i.selling_price",
	).
		From(inventoryTable + " i").
		Join("product_variants v ON v.id = i.variant_id").
		Join("products p ON p.id = v.product_id").
		Join("locations l ON l.id = i.location_id").
		Where(squirrel.Eq{"i.tenant_id": filter.TenantID})

	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"i.location_id": *filter.LocationID})
	}
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"p.id": *filter.ProductID})
	}
	if filter.Category != "" {
		q = q.Where("lower(p.category) = lower(?)", filter.Category)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"p.name": pattern},
			squirrel.ILike{"v.variant_name": pattern},
		})
	}

	return q.OrderBy("p.name", "v.variant_name", "l.name")
}

// ListStock returns inventory rows joined with catalog and location names.
func (r *Repo) ListStock(ctx context.Context, filter inventory.StockFilter) ([]inventory.StockLine, error) {
	sql, args, err := r.stockQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []inventory.StockLine
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select stock: %w", err)
	}
	return lines, nil
}
