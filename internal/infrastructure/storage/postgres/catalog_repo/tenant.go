package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailpos/internal/core/id"
	"retailpos/internal/domain/catalog"
	"retailpos/internal/infrastructure/storage/postgres"
)

const tenantTable = "tenants"

// TenantRepo implements catalog.TenantRepository.
type TenantRepo struct {
	*BaseRepo[*catalog.Tenant]
}

var _ catalog.TenantRepository = (*TenantRepo)(nil)

// NewTenantRepo creates a new tenant repository.
func NewTenantRepo(txm *postgres.TxManager) *TenantRepo {
	return &TenantRepo{
		BaseRepo: NewBaseRepo[*catalog.Tenant](
			txm,
			tenantTable,
			"tenant",
			postgres.ExtractDBColumns[catalog.Tenant](),
			func() *catalog.Tenant { return &catalog.Tenant{} },
		),
	}
}

func (r *TenantRepo) filtered(filter catalog.TenantFilter) squirrel.SelectBuilder {
	q := r.baseSelect()
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"subscription_status": string(filter.Status)})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"name": "%" + filter.Search + "%"})
	}
	return q
}

func (r *TenantRepo) listQuery(filter catalog.TenantFilter) squirrel.SelectBuilder {
	return paginate(r.filtered(filter).OrderBy("created_at DESC", "id DESC"), filter.Limit, filter.Offset)
}

// List returns tenants newest first and the total match count.
func (r *TenantRepo) List(ctx context.Context, filter catalog.TenantFilter) ([]catalog.Tenant, int, error) {
	total, err := r.count(ctx, r.filtered(filter))
	if err != nil {
		return nil, 0, err
	}

	sql, args, err := r.listQuery(filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}
	tenants := []catalog.Tenant{}
	if err := pgxscan.Select(ctx, r.querier(ctx), &tenants, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, total, nil
}

// Delete removes the tenant; locations, catalog, stock, invoices and users
// cascade in the schema.
func (r *TenantRepo) Delete(ctx context.Context, tenantID id.ID) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return r.BaseRepo.Delete(ctx, tenantID)
	})
}
