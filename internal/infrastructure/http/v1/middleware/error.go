package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"retailpos/internal/core/apperror"
	appctx "retailpos/internal/core/context"
	"retailpos/internal/infrastructure/http/v1/dto"
	"retailpos/pkg/logger"
)

// JSONContentType is the content type of every JSON body the API writes.
const JSONContentType = "application/json; charset=utf-8"

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		writeError(c, c.Errors.Last().Err)
	}
}

// writeError renders err and settles the idempotency claim of the request
// with the same bytes.
func writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	appErr, ok := apperror.AsAppError(err)
	if !ok {
		logger.Error(ctx, "unhandled error", "error", err)
		appErr = apperror.NewInternal(err)
	} else if appErr.Err != nil {
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
		} else {
			logger.Warn(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
		}
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	body := dto.ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
	if appErr.Code == apperror.CodeInternal {
		body.Details = map[string]any{"request_id": appctx.GetRequestID(ctx)}
	}

	payload, encErr := json.Marshal(body)
	if encErr != nil {
		logger.Error(ctx, "encode error response", "error", encErr)
		payload = []byte(`{"code":"` + apperror.CodeInternal + `","message":"Internal server error"}`)
		status = http.StatusInternalServerError
	}

	failIdempotency(c, status, payload, appErr.Retryable())
	c.Data(status, JSONContentType, payload)
}
