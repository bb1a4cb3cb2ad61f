// Package memory is an in-process storage backend implementing every
// repository contract. Transactions work on a private copy of the dataset
// under a store-wide lock and publish it on commit, so they are serializable.
package memory

import (
	"context"
	"fmt"
	"time"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/core/idempotency"
	"retailpos/internal/core/tx"
	"retailpos/internal/domain/audit"
	"retailpos/internal/domain/auth"
	"retailpos/internal/domain/catalog"
	"retailpos/internal/domain/inventory"
	"retailpos/internal/domain/invoice"
)

// DefaultLockTimeout bounds the wait for the store lock when the
// transaction options do not set one.
const DefaultLockTimeout = 5 * time.Second

type stockKey struct {
	location id.ID
	variant  id.ID
}

type idempotencyKey struct {
	user string
	key  string
}

type sequenceKey struct {
	tenant id.ID
	prefix string
	period string
}

type dataset struct {
	tenants     map[id.ID]catalog.Tenant
	locations   map[id.ID]catalog.Location
	products    map[id.ID]catalog.Product
	variants    map[id.ID]catalog.Variant
	inventory   map[stockKey]inventory.Inventory
	movements   []inventory.StockMovement
	invoices    map[id.ID]invoice.Invoice
	items       []invoice.Item
	sequences   map[sequenceKey]int64
	users       map[id.ID]auth.User
	sessions    map[id.ID]auth.Session
	idempotency map[idempotencyKey]idempotency.Record
	audit       []audit.Entry
}

func newDataset() *dataset {
	return &dataset{
		tenants:     make(map[id.ID]catalog.Tenant),
		locations:   make(map[id.ID]catalog.Location),
		products:    make(map[id.ID]catalog.Product),
		variants:    make(map[id.ID]catalog.Variant),
		inventory:   make(map[stockKey]inventory.Inventory),
		invoices:    make(map[id.ID]invoice.Invoice),
		sequences:   make(map[sequenceKey]int64),
		users:       make(map[id.ID]auth.User),
		sessions:    make(map[id.ID]auth.Session),
		idempotency: make(map[idempotencyKey]idempotency.Record),
	}
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		tenants:     cloneMap(d.tenants),
		locations:   cloneMap(d.locations),
		products:    cloneMap(d.products),
		variants:    cloneMap(d.variants),
		inventory:   cloneMap(d.inventory),
		movements:   append([]inventory.StockMovement(nil), d.movements...),
		invoices:    cloneMap(d.invoices),
		items:       append([]invoice.Item(nil), d.items...),
		sequences:   cloneMap(d.sequences),
		users:       cloneMap(d.users),
		sessions:    cloneMap(d.sessions),
		idempotency: cloneMap(d.idempotency),
		audit:       append([]audit.Entry(nil), d.audit...),
	}
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store holds the dataset and serializes access to it.
type Store struct {
	sem         chan struct{}
	data        *dataset
	lockTimeout time.Duration
}

// New creates an empty store.
func New() *Store {
	return &Store{
		sem:         make(chan struct{}, 1),
		data:        newDataset(),
		lockTimeout: DefaultLockTimeout,
	}
}

type txKey struct{}

type txState struct {
	data     *dataset
	readOnly bool
}

func txFrom(ctx context.Context) *txState {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st
	}
	return nil
}

// InTransaction checks if context has an active transaction.
func InTransaction(ctx context.Context) bool {
	return txFrom(ctx) != nil
}

func (s *Store) acquire(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.lockTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return apperror.NewTimeout("transaction")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() { <-s.sem }

// RunInTransaction implements tx.Manager.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransactionWithOptions(ctx, tx.Options{}, fn)
}

// RunInTransactionWithOptions implements tx.Manager. Nested calls reuse the
// outer transaction. Only LockTimeout and ReadOnly are meaningful here.
func (s *Store) RunInTransactionWithOptions(ctx context.Context, opts tx.Options, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}
	if err := s.acquire(ctx, opts.LockTimeout); err != nil {
		return err
	}
	defer s.release()

	st := &txState{data: s.data.clone(), readOnly: opts.ReadOnly}
	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		return err
	}
	if !st.readOnly {
		s.data = st.data
	}
	return nil
}

var _ tx.Manager = (*Store)(nil)

// view runs fn against the transaction's dataset or, outside a transaction,
// against the committed dataset under the store lock.
func (s *Store) view(ctx context.Context, fn func(d *dataset) error) error {
	if st := txFrom(ctx); st != nil {
		return fn(st.data)
	}
	if err := s.acquire(ctx, 0); err != nil {
		return err
	}
	defer s.release()
	return fn(s.data)
}

// update runs fn in the current transaction or in a new one.
func (s *Store) update(ctx context.Context, fn func(d *dataset) error) error {
	if st := txFrom(ctx); st != nil {
		if st.readOnly {
			return fmt.Errorf("write in read-only transaction")
		}
		return fn(st.data)
	}
	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		return fn(txFrom(ctx).data)
	})
}

// page applies limit/offset to n items and returns the slice bounds.
func page(n, limit, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}
