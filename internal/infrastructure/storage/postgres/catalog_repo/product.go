package catalog_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/domain/catalog"
	"retailpos/internal/domain/inventory"
	"retailpos/internal/infrastructure/storage/postgres"
)

const (
	productTable = "products"
	variantTable = "product_variants"

	uniqueProductCode = "uq_products_tenant_code"
	uniqueVariantName = "uq_product_variants_name"
)

var variantColumns = postgres.ExtractDBColumns[catalog.Variant]()

// ProductRepo implements catalog.ProductRepository and inventory.Catalog.
type ProductRepo struct {
	*BaseRepo[*catalog.Product]
	batch *postgres.BatchInserter
}

var _ catalog.ProductRepository = (*ProductRepo)(nil)

// NewProductRepo creates a new product repository.
func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	base := NewBaseRepo[*catalog.Product](
		txm,
		productTable,
		"product",
		postgres.ExtractDBColumns[catalog.Product](),
		func() *catalog.Product { return &catalog.Product{} },
	).OnUnique(uniqueProductCode, func(p *catalog.Product) error {
		code := ""
		if p.ProductCode != nil {
			code = *p.ProductCode
		}
		return apperror.NewDuplicate("product", "product_code", code)
	})

	return &ProductRepo{BaseRepo: base, batch: postgres.NewBatchInserter(txm)}
}

// GetByID returns the product with its variants.
func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*catalog.Product, error) {
	p, err := r.BaseRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := r.attachVariants(ctx, []*catalog.Product{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// GetByCode returns the product with the given code within a tenant.
func (r *ProductRepo) GetByCode(ctx context.Context, tenantID id.ID, code string) (*catalog.Product, error) {
	q := r.baseSelect().Where(squirrel.Eq{"tenant_id": tenantID, "product_code": code})
	p, err := r.getOne(ctx, q, code)
	if err != nil {
		return nil, err
	}
	if err := r.attachVariants(ctx, []*catalog.Product{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProductRepo) filtered(filter catalog.ProductFilter) squirrel.SelectBuilder {
	q := r.baseSelect().Where(squirrel.Eq{"tenant_id": filter.TenantID})
	if filter.Category != "" {
		q = q.Where("lower(category) = lower(?)", filter.Category)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"product_code": pattern},
			squirrel.Expr("EXISTS (SELECT 1 FROM "+variantTable+" v WHERE v.product_id = products.id AND v.variant_name ILIKE ?)", pattern),
		})
	}
	return q
}

func (r *ProductRepo) listQuery(filter catalog.ProductFilter) squirrel.SelectBuilder {
	return paginate(r.filtered(filter).OrderBy("name", "id"), filter.Limit, filter.Offset)
}

// List returns products by name with their variants and the total match count.
func (r *ProductRepo) List(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, int, error) {
	total, err := r.count(ctx, r.filtered(filter))
	if err != nil {
		return nil, 0, err
	}

	sql, args, err := r.listQuery(filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}
	products := []catalog.Product{}
	if err := pgxscan.Select(ctx, r.querier(ctx), &products, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	ptrs := make([]*catalog.Product, len(products))
	for i := range products {
		ptrs[i] = &products[i]
	}
	if err := r.attachVariants(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *ProductRepo) variantsQuery(productIDs []id.ID) squirrel.SelectBuilder {
	return r.Builder().
		Select(variantColumns...).
		From(variantTable).
		Where(squirrel.Eq{"product_id": productIDs}).
		OrderBy("id")
}

func (r *ProductRepo) attachVariants(ctx context.Context, products []*catalog.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]id.ID, len(products))
	byID := make(map[id.ID]*catalog.Product, len(products))
	for i, p := range products {
		ids[i] = p.ID
		p.Variants = []catalog.Variant{}
		byID[p.ID] = p
	}

	sql, args, err := r.variantsQuery(ids).ToSql()
	if err != nil {
		return fmt.Errorf("build variants query: %w", err)
	}
	var variants []catalog.Variant
	if err := pgxscan.Select(ctx, r.querier(ctx), &variants, sql, args...); err != nil {
		return fmt.Errorf("select variants: %w", err)
	}
	for _, v := range variants {
		if p, ok := byID[v.ProductID]; ok {
			p.Variants = append(p.Variants, v)
		}
	}
	return nil
}

// CreateVariants inserts variants; a repeated name within a product is a
// Duplicate AppError.
func (r *ProductRepo) CreateVariants(ctx context.Context, variants []catalog.Variant) error {
	if len(variants) == 0 {
		return nil
	}
	rows := make([][]any, len(variants))
	for i := range variants {
		rows[i] = postgres.ColumnValues(variants[i], variantColumns)
	}

	err := r.batch.BulkInsert(ctx, variantTable, variantColumns, rows)
	if err == nil {
		return nil
	}
	if postgres.IsUniqueViolation(err, uniqueVariantName) {
		return apperror.NewDuplicate("variant", "variant_name", duplicateVariantName(variants)).WithCause(err)
	}
	return postgres.TranslateError(fmt.Errorf("insert variants: %w", err), "variant")
}

// duplicateVariantName names the first repeated variant of the batch when it
// repeats within itself; otherwise the conflict is with stored data and the
// first name is reported.
func duplicateVariantName(variants []catalog.Variant) string {
	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		key := v.ProductID.String() + "/" + strings.ToLower(v.VariantName)
		if seen[key] {
			return v.VariantName
		}
		seen[key] = true
	}
	return variants[0].VariantName
}

// soldQuery keeps "?" placeholders; the outer statement numbers them.
func soldQuery(cond squirrel.Sqlizer) squirrel.SelectBuilder {
	return squirrel.
		Select("1").
		From("invoice_items it").
		Where(cond).
		Limit(1)
}

func (r *ProductRepo) hasSalesQuery(cond squirrel.Sqlizer) squirrel.SelectBuilder {
	return r.Builder().Select().Column(squirrel.Expr("EXISTS (?)", soldQuery(cond)))
}

func (r *ProductRepo) hasSales(ctx context.Context, cond squirrel.Sqlizer) (bool, error) {
	sql, args, err := r.hasSalesQuery(cond).ToSql()
	if err != nil {
		return false, fmt.Errorf("build sold query: %w", err)
	}
	var sold bool
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&sold); err != nil {
		return false, fmt.Errorf("check sales: %w", err)
	}
	return sold, nil
}

// Delete fails with a Conflict AppError when any variant has been sold.
func (r *ProductRepo) Delete(ctx context.Context, productID id.ID) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		sold, err := r.hasSales(ctx, squirrel.Expr(
			"it.variant_id IN (SELECT id FROM "+variantTable+" WHERE product_id = ?)", productID))
		if err != nil {
			return err
		}
		if sold {
			return apperror.NewConflict("product has sold variants and cannot be deleted").
				WithDetail("product_id", productID)
		}
		return r.BaseRepo.Delete(ctx, productID)
	})
}

// DeleteVariant fails with a Conflict AppError when the variant has been sold.
func (r *ProductRepo) DeleteVariant(ctx context.Context, variantID id.ID) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		sold, err := r.hasSales(ctx, squirrel.Eq{"it.variant_id": variantID})
		if err != nil {
			return err
		}
		if sold {
			return apperror.NewConflict("variant has been sold and cannot be deleted").
				WithDetail("variant_id", variantID)
		}

		sql, args, err := r.Builder().Delete(variantTable).Where(squirrel.Eq{"id": variantID}).ToSql()
		if err != nil {
			return fmt.Errorf("build delete: %w", err)
		}
		tag, err := r.querier(ctx).Exec(ctx, sql, args...)
		if err != nil {
			return postgres.TranslateError(fmt.Errorf("delete variant: %w", err), "variant")
		}
		if tag.RowsAffected() == 0 {
			return apperror.NewNotFound("variant", variantID)
		}
		return nil
	})
}

func (r *ProductRepo) variantInfoQuery() squirrel.SelectBuilder {
	return r.Builder().
		Select(
			"v.id AS variant_id", "p.id AS product_id", "p.tenant_id",
			"p.name AS product_name", "v.variant_name", "p.category",
			"p.product_code", "p.discount",
		).
		From(variantTable + " v").
		Join(productTable + " p ON p.id = v.product_id")
}

// GetVariantInfo implements inventory.Catalog.
func (r *ProductRepo) GetVariantInfo(ctx context.Context, variantID id.ID) (*inventory.VariantInfo, error) {
	sql, args, err := r.variantInfoQuery().Where(squirrel.Eq{"v.id": variantID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var info inventory.VariantInfo
	if err := pgxscan.Get(ctx, r.querier(ctx), &info, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("variant", variantID)
		}
		return nil, fmt.Errorf("get variant info: %w", err)
	}
	return &info, nil
}

// GetVariantInfos implements inventory.Catalog.
func (r *ProductRepo) GetVariantInfos(ctx context.Context, variantIDs []id.ID) (map[id.ID]*inventory.VariantInfo, error) {
	out := make(map[id.ID]*inventory.VariantInfo, len(variantIDs))
	if len(variantIDs) == 0 {
		return out, nil
	}

	sql, args, err := r.variantInfoQuery().Where(squirrel.Eq{"v.id": variantIDs}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var infos []inventory.VariantInfo
	if err := pgxscan.Select(ctx, r.querier(ctx), &infos, sql, args...); err != nil {
		return nil, fmt.Errorf("select variant infos: %w", err)
	}
	for i := range infos {
		out[infos[i].VariantID] = &infos[i]
	}
	return out, nil
}
