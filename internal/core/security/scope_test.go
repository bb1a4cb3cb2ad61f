package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/core/apperror"
	appctx "retailpos/internal/core/context"
	"retailpos/internal/core/id"
)

func TestRole_AtLeast(t *testing.T) {
	assert.True(t, RoleSuperAdmin.AtLeast(RoleStoreAdmin))
	assert.True(t, RoleStoreAdmin.AtLeast(RoleStoreAdmin))
	assert.False(t, RoleLocationUser.AtLeast(RoleStoreAdmin))
	assert.False(t, Role("cashier").AtLeast(RoleLocationUser))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("location_user")
	require.NoError(t, err)
	assert.Equal(t, RoleLocationUser, r)

	_, err = ParseRole("branch_manager")
	assert.True(t, apperror.IsValidation(err))
}

func TestScope_ResolveTenant(t *testing.T) {
	tenantA, tenantB := id.New(), id.New()

	t.Run("store admin defaults to bound tenant", func(t *testing.T) {
		s := &Scope{Role: RoleStoreAdmin, TenantID: tenantA}
		got, err := s.ResolveTenant(id.Nil())
		require.NoError(t, err)
		assert.Equal(t, tenantA, got)
	})

	t.Run("store admin cannot target another tenant", func(t *testing.T) {
		s := &Scope{Role: RoleStoreAdmin, TenantID: tenantA}
		_, err := s.ResolveTenant(tenantB)
		assert.True(t, apperror.IsForbidden(err))
	})

	t.Run("super admin bypasses isolation", func(t *testing.T) {
		s := &Scope{Role: RoleSuperAdmin, TenantID: tenantA}
		got, err := s.ResolveTenant(tenantB)
		require.NoError(t, err)
		assert.Equal(t, tenantB, got)
	})

	t.Run("super admin without selection", func(t *testing.T) {
		s := &Scope{Role: RoleSuperAdmin}
		_, err := s.ResolveTenant(id.Nil())
		assert.True(t, apperror.IsValidation(err))
	})
}

func TestScope_ResolveLocation(t *testing.T) {
	locA, locB := id.New(), id.New()

	t.Run("location user pinned", func(t *testing.T) {
		s := &Scope{Role: RoleLocationUser, TenantID: id.New(), LocationID: locA}
		got, err := s.ResolveLocation(id.Nil())
		require.NoError(t, err)
		assert.Equal(t, locA, got)

		_, err = s.ResolveLocation(locB)
		assert.True(t, apperror.IsForbidden(err))
	})

	t.Run("store admin picks any location", func(t *testing.T) {
		s := &Scope{Role: RoleStoreAdmin, TenantID: id.New()}
		got, err := s.ResolveLocation(locB)
		require.NoError(t, err)
		assert.Equal(t, locB, got)

		_, err = s.ResolveLocation(id.Nil())
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("filter is optional for admins", func(t *testing.T) {
		s := &Scope{Role: RoleStoreAdmin, TenantID: id.New()}
		got, err := s.LocationFilter(id.Nil())
		require.NoError(t, err)
		assert.True(t, id.IsNil(got))
	})
}

func TestScopeFromPrincipal(t *testing.T) {
	_, err := ScopeFromPrincipal(nil)
	assert.Equal(t, apperror.CodeUnauthorized, err.(*apperror.AppError).Code)

	p := &appctx.Principal{UserID: id.New(), Role: "store_admin", TenantID: id.New()}
	s, err := ScopeFromPrincipal(p)
	require.NoError(t, err)
	assert.Equal(t, RoleStoreAdmin, s.Role)
	assert.Equal(t, p.TenantID, s.TenantID)
}
