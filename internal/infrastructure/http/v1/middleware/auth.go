package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"retailpos/internal/core/apperror"
	appctx "retailpos/internal/core/context"
	"retailpos/internal/core/id"
	"retailpos/internal/core/security"
)

// Authenticator turns a bearer token into the request principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*appctx.Principal, error)
}

// Auth middleware validates the bearer token against its live session and
// populates the principal and scope of the request.
func Auth(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		ctx := c.Request.Context()
		principal, err := authenticator.Authenticate(ctx, parts[1])
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err)
			}
			_ = c.Error(err)
			c.Abort()
			return
		}

		scope, err := security.ScopeFromPrincipal(principal)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		ctx = appctx.WithPrincipal(ctx, principal)
		ctx = security.WithScope(ctx, scope)
		c.Request = c.Request.WithContext(ctx)

		span := trace.SpanFromContext(ctx)
		span.SetAttributes(
			attribute.String("enduser.id", principal.UserID.String()),
			attribute.String("enduser.role", principal.Role),
		)
		if !id.IsNil(principal.TenantID) {
			span.SetAttributes(attribute.String("retailpos.tenant_id", principal.TenantID.String()))
		}

		c.Set("user_id", principal.UserID.String())

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
