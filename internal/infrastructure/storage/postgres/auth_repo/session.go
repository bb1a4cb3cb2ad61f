package auth_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/domain/auth"
	"retailpos/internal/infrastructure/storage/postgres"
)

// SessionRepo implements auth.SessionRepository.
type SessionRepo struct {
	txm *postgres.TxManager
}

// NewSessionRepo creates a new session repository.
func NewSessionRepo(txm *postgres.TxManager) *SessionRepo {
	return &SessionRepo{txm: txm}
}

// Create saves a session; an unknown user is reported as NotFound.
func (r *SessionRepo) Create(ctx context.Context, session *auth.Session) error {
	q := r.txm.GetQuerier(ctx)

	query := `
		INSERT INTO sessions (id, user_id, selected_tenant_id, selected_location_id, expires_at, created_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := q.Exec(ctx, query,
		session.ID, session.UserID, session.SelectedTenantID, session.SelectedLocationID,
		session.ExpiresAt, session.CreatedAt, session.RevokedAt,
	)
	if err != nil {
		err = postgres.TranslateError(fmt.Errorf("save session: %w", err), "session")
		if apperror.HasCode(err, apperror.CodeConflict) {
			return apperror.NewNotFound("user", session.UserID)
		}
		return err
	}

	return nil
}

// Get retrieves a session by id.
func (r *SessionRepo) Get(ctx context.Context, sessionID id.ID) (*auth.Session, error) {
	q := r.txm.GetQuerier(ctx)

	query := `
		SELECT id, user_id, selected_tenant_id, selected_location_id, expires_at, created_at, revoked_at
		FROM sessions WHERE id = $1
	`

	var s auth.Session
	err := q.QueryRow(ctx, query, sessionID).Scan(
		&s.ID, &s.UserID, &s.SelectedTenantID, &s.SelectedLocationID,
		&s.ExpiresAt, &s.CreatedAt, &s.RevokedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("session", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	return &s, nil
}

func (r *SessionRepo) execOne(ctx context.Context, sessionID id.ID, op, query string, args ...any) error {
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("%s: %w", op, err), "session")
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("session", sessionID)
	}
	return nil
}

// SetContext stores the tenant/location a super admin selected.
func (r *SessionRepo) SetContext(ctx context.Context, sessionID id.ID, tenantID, locationID *id.ID) error {
	return r.execOne(ctx, sessionID, "set session context",
		`UPDATE sessions SET selected_tenant_id = $2, selected_location_id = $3 WHERE id = $1`,
		sessionID, tenantID, locationID)
}

// Revoke ends a single session.
func (r *SessionRepo) Revoke(ctx context.Context, sessionID id.ID) error {
	return r.execOne(ctx, sessionID, "revoke session",
		`UPDATE sessions SET revoked_at = COALESCE(revoked_at, now()) WHERE id = $1`,
		sessionID)
}

// RevokeAllForUser revokes all live sessions of a user.
func (r *SessionRepo) RevokeAllForUser(ctx context.Context, userID id.ID) error {
	q := r.txm.GetQuerier(ctx)

	query := `UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`
	if _, err := q.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("revoke all sessions: %w", err)
	}

	return nil
}

// CleanupExpired removes sessions expired or revoked before cutoff.
func (r *SessionRepo) CleanupExpired(ctx context.Context, cutoff time.Time) (int, error) {
	q := r.txm.GetQuerier(ctx)

	query := `DELETE FROM sessions WHERE expires_at < $1 OR revoked_at < $1`
	result, err := q.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// Ensure interface compliance
var _ auth.SessionRepository = (*SessionRepo)(nil)
