// Package idempotency defines the contract behind X-Idempotency-Key handling.
package idempotency

import (
	"context"
	"time"
)

// Status represents the state of an idempotent operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StaleAfter is how long a pending key may sit before it is considered
// abandoned by a crashed request and can be reclaimed.
const StaleAfter = time.Minute

// Record stores the result of an idempotent operation.
type Record struct {
	Key         string    `db:"idempotency_key"`
	UserID      string    `db:"user_id"`
	Operation   string    `db:"operation"`
	Status      Status    `db:"status"`
	RequestHash string    `db:"request_hash"`
	Response    []byte    `db:"response"`
	StatusCode  int       `db:"response_status"`
	ContentType string    `db:"response_content_type"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

// Replay is the cached HTTP response for replay.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// ReplayOf builds the replay of a finished record.
func ReplayOf(r *Record) *Replay {
	status := r.StatusCode
	if status == 0 {
		status = 200
	}
	ct := r.ContentType
	if ct == "" {
		ct = "application/json"
	}
	return &Replay{StatusCode: status, ContentType: ct, Body: r.Response}
}

// Store manages idempotency keys.
type Store interface {
	// Keys are scoped per user: two users may send the same key.

	// Acquire claims key for a request. It returns:
	//   - (nil, nil) when the caller now owns the key
	//   - (replay, nil) when the operation already finished
	//   - (nil, err) when the key is in flight or reused for another request
	Acquire(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error)

	// Complete stores a successful response.
	Complete(ctx context.Context, key, userID string, statusCode int, contentType string, response []byte) error

	// Fail stores a final error response.
	Fail(ctx context.Context, key, userID string, statusCode int, contentType string, response []byte) error

	// Release forgets a key so the request may be retried, e.g. after a
	// retryable error.
	Release(ctx context.Context, key, userID string) error

	// CleanupExpired removes records whose TTL ended before now.
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}
