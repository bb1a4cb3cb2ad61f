// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; implementations live in
// infrastructure/storage (postgres and memory).
package tx

import (
	"context"
	"time"
)

// Isolation is the transaction isolation level requested by a service.
type Isolation int

const (
	// ReadCommitted is the storage default.
	ReadCommitted Isolation = iota
	// RepeatableRead is required by operations that read, validate, then write.
	RepeatableRead
	// Serializable is the strongest level.
	Serializable
)

// Options tune a single transaction.
type Options struct {
	Isolation Isolation
	ReadOnly  bool
	// LockTimeout bounds the wait for row locks. Zero keeps the storage default.
	LockTimeout time.Duration
	// StatementTimeout bounds every statement. Zero keeps the storage default.
	StatementTimeout time.Duration
}

// Manager defines the contract for transaction management.
//
// Nested calls reuse the existing transaction from context.
type Manager interface {
	// RunInTransaction executes fn within a transaction with default options.
	// If fn returns an error, the transaction is rolled back.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// RunInTransactionWithOptions executes fn within a transaction using opts.
	RunInTransactionWithOptions(ctx context.Context, opts Options, fn func(ctx context.Context) error) error
}
