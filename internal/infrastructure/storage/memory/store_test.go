package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/core/numerator"
	"retailpos/internal/core/security"
	"retailpos/internal/core/tx"
	"retailpos/internal/domain/auth"
	"retailpos/internal/domain/catalog"
)

func tenant(name string) *catalog.Tenant {
	now := time.Now().UTC()
	return &catalog.Tenant{ID: id.New(), Name: name, SubscriptionStatus: catalog.StatusTrial, CreatedAt: now, UpdatedAt: now}
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	tn := tenant("A")
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Tenants().Create(ctx, tn))
		_, err := s.Tenants().GetByID(ctx, tn.ID)
		require.NoError(t, err, "writes are visible inside the transaction")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Tenants().GetByID(ctx, tn.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestTransaction_NestedCallsJoinOuter(t *testing.T) {
	s := New()
	ctx := context.Background()
	inner := tenant("inner")

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		assert.True(t, InTransaction(ctx))
		if err := s.RunInTransaction(ctx, func(ctx context.Context) error {
			return s.Tenants().Create(ctx, inner)
		}); err != nil {
			return err
		}
		return errors.New("abort outer")
	})
	require.Error(t, err)

	_, err = s.Tenants().GetByID(ctx, inner.ID)
	assert.True(t, apperror.IsNotFound(err), "inner writes roll back with the outer transaction")
}

func TestTransaction_ReadOnlyRejectsWrites(t *testing.T) {
	s := New()
	err := s.RunInTransactionWithOptions(context.Background(), tx.Options{ReadOnly: true}, func(ctx context.Context) error {
		return s.Tenants().Create(ctx, tenant("A"))
	})
	assert.Error(t, err)
}

func TestTransaction_LockTimeout(t *testing.T) {
	s := New()
	ctx := context.Background()
	entered := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = s.RunInTransaction(ctx, func(ctx context.Context) error {
			close(entered)
			<-done
			return nil
		})
	}()
	<-entered

	err := s.RunInTransactionWithOptions(ctx, tx.Options{LockTimeout: 20 * time.Millisecond}, func(ctx context.Context) error {
		return nil
	})
	close(done)

	assert.True(t, apperror.HasCode(err, apperror.CodeTimeout))
	assert.True(t, apperror.IsRetryable(err))
}

func TestSequences_PerTenantAndPeriod(t *testing.T) {
	s := New()
	ctx := context.Background()
	cfg := numerator.InvoiceConfig()
	a, b := id.New(), id.New()
	march := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	april := march.AddDate(0, 1, 0)

	next := func(tenantID id.ID, period time.Time) string {
		n, err := s.Sequences().Next(ctx, tenantID, cfg, period)
		require.NoError(t, err)
		return n
	}

	assert.Equal(t, "INV-202503-00001", next(a, march))
	assert.Equal(t, "INV-202503-00002", next(a, march))
	assert.Equal(t, "INV-202503-00001", next(b, march))
	assert.Equal(t, "INV-202504-00001", next(a, april))
}

func TestIdempotency_Lifecycle(t *testing.T) {
	s := New()
	store := s.Idempotency(time.Hour)
	ctx := context.Background()

	replay, err := store.Acquire(ctx, "k1", "u1", "POST /api/invoices", "h1")
	require.NoError(t, err)
	assert.Nil(t, replay)

	_, err = store.Acquire(ctx, "k1", "u1", "POST /api/invoices", "h1")
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency), "in-flight key")

	_, err = store.Acquire(ctx, "k1", "u1", "POST /api/invoices", "other-body")
	require.Error(t, err)

	require.NoError(t, store.Complete(ctx, "k1", "u1", 201, "application/json", []byte(`{"ok":true}`)))
	replay, err = store.Acquire(ctx, "k1", "u1", "POST /api/invoices", "h1")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 201, replay.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(replay.Body))

	_, err = store.Acquire(ctx, "k2", "u1", "POST /api/invoices", "h2")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "k2", "u1"))
	replay, err = store.Acquire(ctx, "k2", "u1", "POST /api/invoices", "h2")
	require.NoError(t, err)
	assert.Nil(t, replay, "released keys can be retried")

	n, err := store.CleanupExpired(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestIdempotency_KeysAreScopedPerUser(t *testing.T) {
	s := New()
	store := s.Idempotency(time.Hour)
	ctx := context.Background()

	_, err := store.Acquire(ctx, "k1", "u1", "POST /api/invoices", "h1")
	require.NoError(t, err)

	replay, err := store.Acquire(ctx, "k1", "u2", "POST /api/invoices", "h2")
	require.NoError(t, err, "another user may reuse the same key")
	assert.Nil(t, replay)

	require.NoError(t, store.Complete(ctx, "k1", "u2", 201, "application/json", []byte(`{"user":"u2"}`)))
	_, err = store.Acquire(ctx, "k1", "u1", "POST /api/invoices", "h1")
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency), "u1 is still in flight")

	require.NoError(t, store.Release(ctx, "k1", "u1"))
	replay, err = store.Acquire(ctx, "k1", "u2", "POST /api/invoices", "h2")
	require.NoError(t, err)
	require.NotNil(t, replay, "releasing u1 leaves u2's response in place")
	assert.JSONEq(t, `{"user":"u2"}`, string(replay.Body))
}

func TestTenantDelete_ClearsSessionSelection(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	doomed, kept := tenant("doomed"), tenant("kept")
	require.NoError(t, s.Tenants().Create(ctx, doomed))
	require.NoError(t, s.Tenants().Create(ctx, kept))
	loc := &catalog.Location{ID: id.New(), TenantID: doomed.ID, Name: "Main", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Locations().Create(ctx, loc))

	admin := &auth.User{ID: id.New(), Role: security.RoleSuperAdmin, Email: "root@example.com", IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Users().Create(ctx, admin))

	selected := &auth.Session{ID: id.New(), UserID: admin.ID, SelectedTenantID: &doomed.ID, SelectedLocationID: &loc.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	other := &auth.Session{ID: id.New(), UserID: admin.ID, SelectedTenantID: &kept.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	require.NoError(t, s.Sessions().Create(ctx, selected))
	require.NoError(t, s.Sessions().Create(ctx, other))

	require.NoError(t, s.Tenants().Delete(ctx, doomed.ID))

	got, err := s.Sessions().Get(ctx, selected.ID)
	require.NoError(t, err, "the session survives, only its selection is cleared")
	assert.Nil(t, got.SelectedTenantID)
	assert.Nil(t, got.SelectedLocationID)
	assert.True(t, got.IsValid(now))

	got, err = s.Sessions().Get(ctx, other.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SelectedTenantID)
	assert.Equal(t, kept.ID, *got.SelectedTenantID)
}
