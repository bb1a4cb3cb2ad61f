package numerator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/core/id"
	corenumerator "retailpos/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	*dest[0].(*int64) = m.val
	return nil
}

// mockQuerier simulates invoice_sequences keyed by (tenant, prefix, period).
type mockQuerier struct {
	mu   sync.Mutex
	rows map[string]int64
	err  error
}

func (m *mockQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return &mockRow{err: m.err}
	}
	key := fmt.Sprint(args...)
	m.rows[key]++
	return &mockRow{val: m.rows[key]}
}

func newService(q *mockQuerier) *Service {
	return New(func(context.Context) Querier { return q })
}

func TestNext_FormatsPerTenantAndMonth(t *testing.T) {
	q := &mockQuerier{rows: map[string]int64{}}
	svc := newService(q)
	ctx := context.Background()
	cfg := corenumerator.InvoiceConfig()
	a, b := id.New(), id.New()
	jan := time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		tenant id.ID
		period time.Time
		want   string
	}{
		{a, jan, "INV-202601-00001"},
		{a, jan, "INV-202601-00002"},
		{b, jan, "INV-202601-00001"},
		{a, feb, "INV-202602-00001"},
	} {
		got, err := svc.Next(ctx, tc.tenant, cfg, tc.period)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestNext_ConcurrentCallsAreUnique(t *testing.T) {
	q := &mockQuerier{rows: map[string]int64{}}
	svc := newService(q)
	cfg := corenumerator.InvoiceConfig()
	tenant := id.New()
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	const n = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := svc.Next(context.Background(), tenant, cfg, period)
			assert.NoError(t, err)
			mu.Lock()
			seen[num] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestNext_Errors(t *testing.T) {
	boom := errors.New("connection reset")
	svc := newService(&mockQuerier{err: boom})
	_, err := svc.Next(context.Background(), id.New(), corenumerator.InvoiceConfig(), time.Now())
	assert.ErrorIs(t, err, boom)

	_, err = svc.Next(context.Background(), id.Nil(), corenumerator.InvoiceConfig(), time.Now())
	assert.Error(t, err)

	var nilSvc *Service
	_, err = nilSvc.Next(context.Background(), id.New(), corenumerator.InvoiceConfig(), time.Now())
	assert.Error(t, err)
}
