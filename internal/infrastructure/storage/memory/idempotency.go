package memory

import (
	"context"
	"time"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/idempotency"
)

// IdempotencyStore implements idempotency.Store.
type IdempotencyStore struct {
	store *Store
	ttl   time.Duration
	now   func() time.Time
}

// Idempotency returns the idempotency key store.
func (s *Store) Idempotency(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{store: s, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

func (s *IdempotencyStore) Acquire(ctx context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	var replay *idempotency.Replay
	err := s.store.update(ctx, func(d *dataset) error {
		now := s.now()
		k := idempotencyKey{user: userID, key: key}
		rec, exists := d.idempotency[k]
		if !exists || rec.ExpiresAt.Before(now) {
			d.idempotency[k] = idempotency.Record{
				Key:         key,
				UserID:      userID,
				Operation:   operation,
				Status:      idempotency.StatusPending,
				RequestHash: requestHash,
				CreatedAt:   now,
				UpdatedAt:   now,
				ExpiresAt:   now.Add(s.ttl),
			}
			return nil
		}
		if rec.Operation != operation || rec.RequestHash != requestHash {
			return apperror.NewIdempotencyMismatch(key)
		}
		switch rec.Status {
		case idempotency.StatusSuccess, idempotency.StatusFailed:
			replay = idempotency.ReplayOf(&rec)
			return nil
		}
		if now.Sub(rec.UpdatedAt) > idempotency.StaleAfter {
			rec.UpdatedAt = now
			d.idempotency[k] = rec
			return nil
		}
		return apperror.NewIdempotencyConflict(key)
	})
	return replay, err
}

func (s *IdempotencyStore) finish(ctx context.Context, key, userID string, status idempotency.Status, code int, contentType string, body []byte) error {
	return s.store.update(ctx, func(d *dataset) error {
		k := idempotencyKey{user: userID, key: key}
		rec, ok := d.idempotency[k]
		if !ok {
			return nil
		}
		rec.Status = status
		rec.StatusCode = code
		rec.ContentType = contentType
		rec.Response = append([]byte(nil), body...)
		rec.UpdatedAt = s.now()
		d.idempotency[k] = rec
		return nil
	})
}

func (s *IdempotencyStore) Complete(ctx context.Context, key, userID string, code int, contentType string, body []byte) error {
	return s.finish(ctx, key, userID, idempotency.StatusSuccess, code, contentType, body)
}

func (s *IdempotencyStore) Fail(ctx context.Context, key, userID string, code int, contentType string, body []byte) error {
	return s.finish(ctx, key, userID, idempotency.StatusFailed, code, contentType, body)
}

func (s *IdempotencyStore) Release(ctx context.Context, key, userID string) error {
	return s.store.update(ctx, func(d *dataset) error {
		delete(d.idempotency, idempotencyKey{user: userID, key: key})
		return nil
	})
}

func (s *IdempotencyStore) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := s.store.update(ctx, func(d *dataset) error {
		for key, rec := range d.idempotency {
			if rec.ExpiresAt.Before(now) {
				delete(d.idempotency, key)
				n++
			}
		}
		return nil
	})
	return n, err
}
