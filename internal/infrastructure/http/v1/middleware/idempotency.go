package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"retailpos/internal/core/apperror"
	appctx "retailpos/internal/core/context"
	"retailpos/internal/core/idempotency"
	"retailpos/pkg/logger"
)

const (
	HeaderIdempotencyKey    = "X-Idempotency-Key"
	HeaderIdempotentReplay  = "X-Idempotent-Replay"
	maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

	claimContextKey = "idempotency_claim"
)

// claim is the request's ownership of an idempotency key.
type claim struct {
	store  idempotency.Store
	key    string
	userID string
	done   bool
}

func claimOf(c *gin.Context) *claim {
	v, ok := c.Get(claimContextKey)
	if !ok {
		return nil
	}
	cl, _ := v.(*claim)
	return cl
}

// Idempotency middleware protects against duplicate requests.
// A nil store disables it.
func Idempotency(store idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.Next()
			return
		}

		// Only apply to mutating methods
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		userID := appctx.GetUserID(ctx)

		// Hash request body
		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			_ = c.Error(apperror.NewValidation("unreadable request body"))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		operation := c.Request.Method + " " + c.FullPath()

		replay, err := store.Acquire(ctx, key, userID, operation, requestHash)
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			_ = c.Error(err)
			c.Abort()
			return
		}

		if replay != nil {
			c.Header(HeaderIdempotentReplay, "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		cl := &claim{store: store, key: key, userID: userID}
		c.Set(claimContextKey, cl)

		c.Next()

		// Errors are rendered here so the stored failure matches the response.
		if len(c.Errors) > 0 && !c.Writer.Written() {
			writeError(c, c.Errors.Last().Err)
		}
		if !cl.done {
			cl.done = true
			if err := store.Release(ctx, key, userID); err != nil {
				logger.Warn(ctx, "release idempotency key", "key", key, "error", err)
			}
		}
	}
}

// CompleteIdempotency stores a successful response under the request's key.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, body []byte) {
	cl := claimOf(c)
	if cl == nil || cl.done {
		return
	}
	cl.done = true
	if err := cl.store.Complete(c.Request.Context(), cl.key, cl.userID, statusCode, contentType, body); err != nil {
		logger.Warn(c.Request.Context(), "complete idempotency key", "key", cl.key, "error", err)
	}
}

// failIdempotency stores a final error response, or forgets the key when the
// client may retry.
func failIdempotency(c *gin.Context, statusCode int, body []byte, retryable bool) {
	cl := claimOf(c)
	if cl == nil || cl.done {
		return
	}
	cl.done = true
	ctx := c.Request.Context()

	if retryable || statusCode >= http.StatusInternalServerError {
		if err := cl.store.Release(ctx, cl.key, cl.userID); err != nil {
			logger.Warn(ctx, "release idempotency key", "key", cl.key, "error", err)
		}
		return
	}
	if err := cl.store.Fail(ctx, cl.key, cl.userID, statusCode, JSONContentType, body); err != nil {
		logger.Warn(ctx, "fail idempotency key", "key", cl.key, "error", err)
	}
}
