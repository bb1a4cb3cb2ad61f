package postgres

import (
	"context"
	"fmt"
	"time"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/idempotency"
)

// IdempotencyStore implements idempotency.Store on sys_idempotency.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl}
}

// Acquire attempts to claim an idempotency key.
func (s *IdempotencyStore) Acquire(ctx context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	now := time.Now().UTC()
	q := s.txManager.GetQuerier(ctx)

	// An expired key behaves as if it was never used.
	if _, err := q.Exec(ctx, `DELETE FROM sys_idempotency WHERE user_id = $1 AND idempotency_key = $2 AND expires_at < $3`, userID, key, now); err != nil {
		return nil, fmt.Errorf("purge expired idempotency key: %w", err)
	}

	var (
		record   idempotency.Record
		response []byte
		inserted bool
	)
	err := q.QueryRow(ctx, `
		INSERT INTO sys_idempotency (idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (user_id, idempotency_key) DO UPDATE SET
			updated_at = sys_idempotency.updated_at
		RETURNING user_id, operation, status, request_hash, response, response_status, response_content_type,
			updated_at, (xmax = 0) AS inserted
	`, key, userID, operation, idempotency.StatusPending, requestHash, now, now.Add(s.ttl)).Scan(
		&record.UserID, &record.Operation, &record.Status, &record.RequestHash,
		&response, &record.StatusCode, &record.ContentType, &record.UpdatedAt, &inserted,
	)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	record.Key = key
	record.Response = response

	if inserted {
		return nil, nil
	}

	// Key exists: protect against reuse for a different request.
	if record.Operation != operation || record.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", record.Operation).
			WithDetail("request_operation", operation)
	}

	switch record.Status {
	case idempotency.StatusSuccess, idempotency.StatusFailed:
		return idempotency.ReplayOf(&record), nil
	}

	if now.Sub(record.UpdatedAt) <= idempotency.StaleAfter {
		return nil, apperror.NewIdempotencyConflict(key)
	}

	// Pending for too long: the request that held it most likely crashed.
	tag, err := q.Exec(ctx, `
		UPDATE sys_idempotency
		SET updated_at = $1
		WHERE user_id = $2 AND idempotency_key = $3 AND status = $4 AND updated_at = $5
	`, now, userID, key, idempotency.StatusPending, record.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("reclaim stale key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	return nil, nil
}

func (s *IdempotencyStore) finish(ctx context.Context, key, userID string, status idempotency.Status, statusCode int, contentType string, response []byte) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1,
		    response = $2,
		    response_status = $3,
		    response_content_type = $4,
		    updated_at = $5
		WHERE user_id = $6 AND idempotency_key = $7
	`, status, response, statusCode, contentType, time.Now().UTC(), userID, key)
	if err != nil {
		return fmt.Errorf("finish idempotency key: %w", err)
	}
	return nil
}

// Complete marks an idempotency key as completed with HTTP response.
func (s *IdempotencyStore) Complete(ctx context.Context, key, userID string, statusCode int, contentType string, response []byte) error {
	return s.finish(ctx, key, userID, idempotency.StatusSuccess, statusCode, contentType, response)
}

// Fail marks an idempotency key as failed with HTTP response.
func (s *IdempotencyStore) Fail(ctx context.Context, key, userID string, statusCode int, contentType string, response []byte) error {
	return s.finish(ctx, key, userID, idempotency.StatusFailed, statusCode, contentType, response)
}

// Release deletes a key so the same request may run again.
func (s *IdempotencyStore) Release(ctx context.Context, key, userID string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `DELETE FROM sys_idempotency WHERE user_id = $1 AND idempotency_key = $2`, userID, key)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired idempotency records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE expires_at < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return result.RowsAffected(), nil
}
