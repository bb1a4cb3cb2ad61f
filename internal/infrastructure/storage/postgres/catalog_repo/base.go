// Package catalog_repo provides PostgreSQL implementations for tenants,
// locations and the product catalog.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/infrastructure/storage/postgres"
)

// UniqueHandler turns a violation of one unique constraint into a domain error.
type UniqueHandler[T any] func(entity T) error

// BaseRepo provides common CRUD operations over one table whose columns are
// the "db" tags of T. Embed it in specific repositories.
type BaseRepo[T any] struct {
	txm        *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	newFn      func() T

	// immutable columns are never written by Update.
	immutable map[string]bool
	uniques   map[string]UniqueHandler[T]
}

// NewBaseRepo creates a base repository.
func NewBaseRepo[T any](
	txm *postgres.TxManager,
	tableName, entityName string,
	selectCols []string,
	newFn func() T,
) *BaseRepo[T] {
	return &BaseRepo[T]{
		txm:        txm,
		tableName:  tableName,
		entityName: entityName,
		selectCols: selectCols,
		newFn:      newFn,
		immutable:  map[string]bool{"id": true, "tenant_id": true, "created_at": true},
		uniques:    map[string]UniqueHandler[T]{},
	}
}

// OnUnique registers the domain error for a unique constraint.
func (r *BaseRepo[T]) OnUnique(constraint string, h UniqueHandler[T]) *BaseRepo[T] {
	r.uniques[constraint] = h
	return r
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BaseRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

func (r *BaseRepo[T]) translate(err error, entity T, op string) error {
	for constraint, h := range r.uniques {
		if postgres.IsUniqueViolation(err, constraint) {
			if appErr, ok := apperror.AsAppError(h(entity)); ok {
				return appErr.WithCause(err)
			}
		}
	}
	return postgres.TranslateError(fmt.Errorf("%s %s: %w", op, r.tableName, err), r.entityName)
}

func (r *BaseRepo[T]) insertQuery(entity T) squirrel.InsertBuilder {
	return r.Builder().
		Insert(r.tableName).
		Columns(r.selectCols...).
		Values(postgres.ColumnValues(entity, r.selectCols)...)
}

// Create inserts entity using its "db" tags.
func (r *BaseRepo[T]) Create(ctx context.Context, entity T) error {
	sql, args, err := r.insertQuery(entity).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return r.translate(err, entity, "insert")
	}
	return nil
}

func (r *BaseRepo[T]) updateQuery(entity T) (squirrel.UpdateBuilder, error) {
	data := postgres.StructToMap(entity)
	entityID, ok := data["id"]
	if !ok {
		return squirrel.UpdateBuilder{}, fmt.Errorf("%s has no 'id' column", r.entityName)
	}

	set := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if r.immutable[col] {
			continue
		}
		if val, ok := data[col]; ok {
			set[col] = val
		}
	}

	return r.Builder().
		Update(r.tableName).
		SetMap(set).
		Where(squirrel.Eq{"id": entityID}), nil
}

// Update overwrites every mutable column of entity.
func (r *BaseRepo[T]) Update(ctx context.Context, entity T) error {
	q, err := r.updateQuery(entity)
	if err != nil {
		return err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return r.translate(err, entity, "update")
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, postgres.StructToMap(entity)["id"])
	}
	return nil
}

func (r *BaseRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

func (r *BaseRepo[T]) getOne(ctx context.Context, q squirrel.SelectBuilder, key any) (T, error) {
	entity := r.newFn()

	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.querier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.entityName, key)
		}
		return entity, postgres.TranslateError(fmt.Errorf("get %s: %w", r.entityName, err), r.entityName)
	}
	return entity, nil
}

// GetByID retrieves entity by ID.
func (r *BaseRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}), entityID)
}

// Delete removes the row. Dependent rows follow the schema's cascade rules.
func (r *BaseRepo[T]) Delete(ctx context.Context, entityID id.ID) error {
	sql, args, err := r.Builder().
		Delete(r.tableName).
		Where(squirrel.Eq{"id": entityID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("delete %s: %w", r.tableName, err), r.entityName)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID)
	}
	return nil
}

// Exists checks if entity exists.
func (r *BaseRepo[T]) Exists(ctx context.Context, entityID id.ID) (bool, error) {
	sql, args, err := r.Builder().
		Select("1").
		From(r.tableName).
		Where(squirrel.Eq{"id": entityID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return true, nil
}

// count runs SELECT COUNT(*) over q.
func (r *BaseRepo[T]) count(ctx context.Context, q squirrel.SelectBuilder) (int, error) {
	sql, args, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.tableName, err)
	}
	return total, nil
}

func paginate(q squirrel.SelectBuilder, limit, offset int) squirrel.SelectBuilder {
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return q
}
