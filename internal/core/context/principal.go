package context

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the authenticated caller as supplied by the auth layer.
//
// TenantID and LocationID hold the caller's bound scope. For a super admin
// they hold the tenant/location selected for the session (possibly empty).
type Principal struct {
	UserID     uuid.UUID
	Email      string
	Role       string
	TenantID   uuid.UUID
	LocationID uuid.UUID
	SessionID  string
}

type principalKey struct{}

// WithPrincipal adds Principal to context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// GetPrincipal returns Principal from context or nil.
func GetPrincipal(ctx context.Context) *Principal {
	if v, ok := ctx.Value(principalKey{}).(*Principal); ok {
		return v
	}
	return nil
}

// GetUserID returns the caller's user ID as a string, or "" for anonymous calls.
func GetUserID(ctx context.Context) string {
	if p := GetPrincipal(ctx); p != nil && p.UserID != uuid.Nil {
		return p.UserID.String()
	}
	return ""
}
