package catalog_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/auth"
	"retailpos/internal/domain/catalog"
	"retailpos/internal/infrastructure/storage/postgres"
)

const locationTable = "locations"

// LocationRepo implements catalog.LocationRepository, the auth directory and
// the system overview.
type LocationRepo struct {
	*BaseRepo[*catalog.Location]
}

var (
	_ catalog.LocationRepository = (*LocationRepo)(nil)
	_ catalog.OverviewReader     = (*LocationRepo)(nil)
	_ auth.Directory             = (*LocationRepo)(nil)
)

// NewLocationRepo creates a new location repository.
func NewLocationRepo(txm *postgres.TxManager) *LocationRepo {
	return &LocationRepo{
		BaseRepo: NewBaseRepo[*catalog.Location](
			txm,
			locationTable,
			"location",
			postgres.ExtractDBColumns[catalog.Location](),
			func() *catalog.Location { return &catalog.Location{} },
		),
	}
}

// Create inserts the location; an unknown tenant is reported as NotFound.
func (r *LocationRepo) Create(ctx context.Context, loc *catalog.Location) error {
	if err := r.TenantExists(ctx, loc.TenantID); err != nil {
		return err
	}
	return r.BaseRepo.Create(ctx, loc)
}

func (r *LocationRepo) byTenantQuery(tenantID id.ID) squirrel.SelectBuilder {
	return r.baseSelect().
		Where(squirrel.Eq{"tenant_id": tenantID}).
		OrderBy("name", "id")
}

// ListByTenant returns the tenant's locations by name.
func (r *LocationRepo) ListByTenant(ctx context.Context, tenantID id.ID) ([]catalog.Location, error) {
	sql, args, err := r.byTenantQuery(tenantID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	locations := []catalog.Location{}
	if err := pgxscan.Select(ctx, r.querier(ctx), &locations, sql, args...); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return locations, nil
}

// Delete removes the location with its inventory, movements, invoices and
// bound users.
func (r *LocationRepo) Delete(ctx context.Context, locationID id.ID) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return r.BaseRepo.Delete(ctx, locationID)
	})
}

// LocationTenant implements security.LocationDirectory.
func (r *LocationRepo) LocationTenant(ctx context.Context, locationID id.ID) (id.ID, error) {
	sql, args, err := r.Builder().
		Select("tenant_id").
		From(locationTable).
		Where(squirrel.Eq{"id": locationID}).
		ToSql()
	if err != nil {
		return id.Nil(), fmt.Errorf("build query: %w", err)
	}

	var owner id.ID
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return id.Nil(), apperror.NewNotFound("location", locationID)
		}
		return id.Nil(), postgres.TranslateError(fmt.Errorf("location tenant: %w", err), "location")
	}
	return owner, nil
}

// TenantExists implements auth.Directory.
func (r *LocationRepo) TenantExists(ctx context.Context, tenantID id.ID) error {
	sql, args, err := r.Builder().
		Select("1").
		From(tenantTable).
		Where(squirrel.Eq{"id": tenantID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var one int
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NewNotFound("tenant", tenantID)
		}
		return fmt.Errorf("check tenant: %w", err)
	}
	return nil
}

const overviewSQL = `
SELECT
	(SELECT COUNT(*) FROM tenants)   AS tenants,
	(SELECT COUNT(*) FROM locations) AS locations,
	(SELECT COUNT(*) FROM users)     AS users,
	(SELECT COUNT(*) FROM invoices)  AS invoices,
	COUNT(i.id)                      AS recent_invoices,
	COALESCE(SUM(i.total_amount), 0) AS recent_revenue
FROM invoices i
WHERE i.created_at >= $1`

// Overview implements catalog.OverviewReader.
func (r *LocationRepo) Overview(ctx context.Context, since time.Time) (*catalog.SystemOverview, error) {
	ov := &catalog.SystemOverview{RecentRevenue: types.Zero()}
	if err := pgxscan.Get(ctx, r.querier(ctx), ov, overviewSQL, since); err != nil {
		return nil, fmt.Errorf("system overview: %w", err)
	}
	return ov, nil
}
