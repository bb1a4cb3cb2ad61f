package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientStock_NamesVariant(t *testing.T) {
	err := NewInsufficientStock("v-1", 3, 2)

	assert.Equal(t, http.StatusConflict, err.HTTPStatus)
	assert.Contains(t, err.Message, "v-1")
	assert.Equal(t, int64(3), err.Details["requested"])
	assert.Equal(t, int64(2), err.Details["available"])
	assert.True(t, IsInsufficientStock(err))
}

func TestAsAppError_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("create invoice: %w", NewForbidden("location out of scope"))

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeForbidden, appErr.Code)
	assert.Equal(t, http.StatusForbidden, GetHTTPStatus(wrapped))
	assert.True(t, IsForbidden(wrapped))
}

func TestGetHTTPStatus_PlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
}

func TestTimeout_IsRetryable(t *testing.T) {
	err := fmt.Errorf("lock: %w", NewTimeout("create invoice"))

	assert.True(t, IsRetryable(err))
	assert.Equal(t, http.StatusServiceUnavailable, GetHTTPStatus(err))
	assert.False(t, IsRetryable(NewConflict("duplicate")))
}

func TestInternal_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternal(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Internal server error", err.Message)
}
