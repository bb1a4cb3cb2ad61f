// Package numerator provides the PostgreSQL implementation of invoice numbering.
// This is the infrastructure layer - it implements core/numerator.Generator.
package numerator

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"retailpos/internal/core/id"
	corenumerator "retailpos/internal/core/numerator"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierProvider returns the querier bound to ctx, normally the open
// transaction of the sale.
type QuerierProvider func(ctx context.Context) Querier

// Service reserves numbers with a single UPSERT ... RETURNING per call.
// The sequence row stays locked until the surrounding transaction ends, so
// concurrent sales of one tenant serialize on it and a rollback gives the
// number back.
type Service struct {
	querier QuerierProvider
}

// Ensure compile-time interface compliance.
var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator service.
func New(querier QuerierProvider) *Service {
	return &Service{querier: querier}
}

// Next reserves and formats the next number of tenantID's sequence for period.
func (s *Service) Next(ctx context.Context, tenantID id.ID, cfg corenumerator.Config, period time.Time) (string, error) {
	if s == nil || s.querier == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if id.IsNil(tenantID) {
		return "", fmt.Errorf("numerator: tenant is required")
	}

	var num int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO invoice_sequences (tenant_id, prefix, period, current_val)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_id, prefix, period) DO UPDATE SET current_val = invoice_sequences.current_val + 1
		RETURNING current_val
	`, tenantID, cfg.Prefix, cfg.PeriodKey(period)).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("reserve %s number: %w", cfg.Prefix, err)
	}

	return cfg.Format(period, num), nil
}
