package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CopyThreshold is the row count from which BulkInsert switches from a
// pipelined INSERT batch to the COPY protocol.
const CopyThreshold = 32

// BatchInserter writes many rows of one table inside the current transaction.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// BulkInsert inserts rows (each matching columns) into table. Small sets go
// out as one pipelined batch of INSERTs, large ones through COPY.
func (b *BatchInserter) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	if len(rows) >= CopyThreshold {
		_, err := b.CopyFromSlice(ctx, table, columns, rows)
		return err
	}

	sql := insertSQL(table, columns)
	queries := make([]BatchQuery, len(rows))
	for i, row := range rows {
		queries[i] = BatchQuery{SQL: sql, Args: row}
	}
	return NewBatchExecutor(b.txManager).ExecuteBatch(ctx, queries)
}

// CopyFromSlice performs bulk insert using PostgreSQL COPY protocol.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	t := b.txManager.GetTx(ctx)
	if t == nil {
		return 0, fmt.Errorf("CopyFromSlice requires transaction context")
	}

	n, err := t.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

func insertSQL(table string, columns []string) string {
	placeholders := make([]byte, 0, len(columns)*4)
	for i := range columns {
		if i > 0 {
			placeholders = append(placeholders, ", "...)
		}
		placeholders = fmt.Appendf(placeholders, "$%d", i+1)
	}
	cols := pgx.Identifier{table}.Sanitize() + " ("
	for i, c := range columns {
		if i > 0 {
			cols += ", "
		}
		cols += pgx.Identifier{c}.Sanitize()
	}
	return "INSERT INTO " + cols + ") VALUES (" + string(placeholders) + ")"
}

// BatchExecutor provides batch query execution.
type BatchExecutor struct {
	txManager *TxManager
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(txManager *TxManager) *BatchExecutor {
	return &BatchExecutor{txManager: txManager}
}

// BatchQuery represents a query in a batch.
type BatchQuery struct {
	SQL  string
	Args []any
}

// ExecuteBatch executes multiple queries in a single round-trip.
func (e *BatchExecutor) ExecuteBatch(ctx context.Context, queries []BatchQuery) error {
	t := e.txManager.GetTx(ctx)
	if t == nil {
		return fmt.Errorf("ExecuteBatch requires transaction context")
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	results := t.SendBatch(ctx, batch)
	defer results.Close()

	for range queries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch query failed: %w", err)
		}
	}

	return nil
}
