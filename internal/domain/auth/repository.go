package auth

import (
	"context"
	"time"

	"retailpos/internal/core/id"
)

// UserRepository defines user storage operations.
type UserRepository interface {
	// Create creates a new user. A taken email yields a Duplicate AppError.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves user by ID.
	GetByID(ctx context.Context, userID id.ID) (*User, error)

	// GetByEmail retrieves user by email (globally unique).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update updates user data.
	Update(ctx context.Context, user *User) error

	// List retrieves users with filtering.
	List(ctx context.Context, filter UserFilter) ([]User, int, error)

	// Exists checks if email is taken.
	Exists(ctx context.Context, email string) (bool, error)
}

// SessionRepository is the session store keyed by session id.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error

	// Get returns a NotFound AppError for unknown sessions.
	Get(ctx context.Context, sessionID id.ID) (*Session, error)

	// SetContext stores the tenant/location a super admin selected.
	SetContext(ctx context.Context, sessionID id.ID, tenantID, locationID *id.ID) error

	// Revoke ends a single session.
	Revoke(ctx context.Context, sessionID id.ID) error

	// RevokeAllForUser ends every session of a user.
	RevokeAllForUser(ctx context.Context, userID id.ID) error

	// CleanupExpired removes sessions expired or revoked before cutoff.
	CleanupExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// Directory validates tenant/location targets chosen by SwitchContext and
// CreateUser.
type Directory interface {
	// TenantExists returns a NotFound AppError for unknown tenants.
	TenantExists(ctx context.Context, tenantID id.ID) error
	// LocationTenant returns the owning tenant or a NotFound AppError.
	LocationTenant(ctx context.Context, locationID id.ID) (id.ID, error)
}
