// Package auth_repo provides PostgreSQL implementations for auth repositories.
package auth_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/domain/auth"
	"retailpos/internal/infrastructure/storage/postgres"
)

const uniqueUserEmail = "uq_users_email"

const userColumns = `id, tenant_id, location_id, role, email, password_hash, name,
	is_active, last_login_at, failed_login_attempts, locked_until, created_at, updated_at`

// UserRepo implements auth.UserRepository.
type UserRepo struct {
	txm *postgres.TxManager
}

// NewUserRepo creates a new user repository.
func NewUserRepo(txm *postgres.TxManager) *UserRepo {
	return &UserRepo{txm: txm}
}

func scanUser(row pgx.Row, user *auth.User) error {
	return row.Scan(
		&user.ID, &user.TenantID, &user.LocationID, &user.Role, &user.Email,
		&user.PasswordHash, &user.Name, &user.IsActive, &user.LastLoginAt,
		&user.FailedLoginAttempts, &user.LockedUntil, &user.CreatedAt, &user.UpdatedAt,
	)
}

// Create creates a new user. A taken email yields a Duplicate AppError.
func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	q := r.txm.GetQuerier(ctx)

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := q.Exec(ctx, query,
		user.ID, user.TenantID, user.LocationID, string(user.Role), user.Email,
		user.PasswordHash, user.Name, user.IsActive, user.LastLoginAt,
		user.FailedLoginAttempts, user.LockedUntil, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, uniqueUserEmail) {
			return apperror.NewDuplicate("user", "email", user.Email).WithCause(err)
		}
		return postgres.TranslateError(fmt.Errorf("insert user: %w", err), "user")
	}

	return nil
}

func (r *UserRepo) getBy(ctx context.Context, column string, value any) (*auth.User, error) {
	q := r.txm.GetQuerier(ctx)

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	var user auth.User
	err := scanUser(q.QueryRow(ctx, query, value), &user)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("user", value)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// GetByID retrieves user by ID.
func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	return r.getBy(ctx, "id", userID)
}

// GetByEmail retrieves user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getBy(ctx, "email", email)
}

// Update updates the mutable user columns.
func (r *UserRepo) Update(ctx context.Context, user *auth.User) error {
	q := r.txm.GetQuerier(ctx)

	query := `
		UPDATE users SET
			location_id = $2,
			role = $3,
			name = $4,
			is_active = $5,
			last_login_at = $6,
			failed_login_attempts = $7,
			locked_until = $8,
			password_hash = $9,
			email = $10,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := q.QueryRow(ctx, query,
		user.ID, user.LocationID, string(user.Role), user.Name, user.IsActive,
		user.LastLoginAt, user.FailedLoginAttempts, user.LockedUntil, user.PasswordHash,
		user.Email,
	).Scan(&user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewNotFound("user", user.ID)
	}
	if err != nil {
		if postgres.IsUniqueViolation(err, uniqueUserEmail) {
			return apperror.NewDuplicate("user", "email", user.Email).WithCause(err)
		}
		return postgres.TranslateError(fmt.Errorf("update user: %w", err), "user")
	}

	return nil
}

// listQueries builds the page and count statements for filter.
func listQueries(filter auth.UserFilter) (query, countQuery string, args []any) {
	where := " WHERE tenant_id = $1"
	args = []any{filter.TenantID}
	argIdx := 2

	if filter.LocationID != nil {
		where += fmt.Sprintf(" AND location_id = $%d", argIdx)
		args = append(args, *filter.LocationID)
		argIdx++
	}

	if filter.Role != "" {
		where += fmt.Sprintf(" AND role = $%d", argIdx)
		args = append(args, string(filter.Role))
		argIdx++
	}

	if filter.Search != "" {
		where += fmt.Sprintf(" AND (email ILIKE $%d OR name ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+filter.Search+"%")
	}

	query = `SELECT ` + userColumns + ` FROM users` + where + " ORDER BY email ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}
	countQuery = `SELECT COUNT(*) FROM users` + where
	return query, countQuery, args
}

// List retrieves the tenant's users ordered by email.
func (r *UserRepo) List(ctx context.Context, filter auth.UserFilter) ([]auth.User, int, error) {
	q := r.txm.GetQuerier(ctx)
	query, countQuery, args := listQueries(filter)

	var total int
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []auth.User{}
	for rows.Next() {
		var user auth.User
		if err := scanUser(rows, &user); err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	return users, total, nil
}

// Exists checks if email is taken.
func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	q := r.txm.GetQuerier(ctx)

	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check exists: %w", err)
	}

	return exists, nil
}

// Ensure interface compliance
var _ auth.UserRepository = (*UserRepo)(nil)
