package numerator

import (
	"context"
	"time"

	"retailpos/internal/core/id"
)

// Generator reserves the next number of a tenant's sequence.
//
// Implementations must reserve the value inside the transaction carried by
// ctx so that a rolled-back sale does not consume a number and two
// concurrent sales never receive the same one.
type Generator interface {
	Next(ctx context.Context, tenantID id.ID, cfg Config, period time.Time) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, tenantID id.ID, cfg Config, period time.Time) (string, error)

// Next implements Generator.
func (f GeneratorFunc) Next(ctx context.Context, tenantID id.ID, cfg Config, period time.Time) (string, error) {
	return f(ctx, tenantID, cfg, period)
}

var _ Generator = GeneratorFunc(nil)
