package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/infrastructure/http/v1/dto"
	"retailpos/internal/infrastructure/http/v1/middleware"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler (single source of truth).
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// Page reads limit/offset query parameters.
func (h *BaseHandler) Page(c *gin.Context) dto.Page {
	return dto.NewPage(h.ParseIntQuery(c, "limit", dto.DefaultLimit), h.ParseIntQuery(c, "offset", 0))
}

// ParamID parses a path parameter as an id.
func (h *BaseHandler) ParamID(c *gin.Context, name string) (id.ID, bool) {
	v, err := id.Parse(c.Param(name))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", name))
		return id.Nil(), false
	}
	return v, true
}

// QueryID parses an optional query parameter as an id; absent yields Nil.
func (h *BaseHandler) QueryID(c *gin.Context, key string) (id.ID, bool) {
	v, err := id.ParseOptional(c.Query(key))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+key).WithDetail("field", key))
		return id.Nil(), false
	}
	return v, true
}

// QueryOptionalID is QueryID returning nil when the parameter is absent.
func (h *BaseHandler) QueryOptionalID(c *gin.Context, key string) (*id.ID, bool) {
	v, ok := h.QueryID(c, key)
	if !ok || id.IsNil(v) {
		return nil, ok
	}
	return &v, true
}

// QueryTime parses an optional RFC 3339 timestamp or YYYY-MM-DD date.
// A bare date used as an upper bound covers the whole day.
func (h *BaseHandler) QueryTime(c *gin.Context, key string, upperBound bool) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, true
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+key+", expected RFC 3339 or YYYY-MM-DD").WithDetail("field", key))
		return nil, false
	}
	if upperBound {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, true
}

// respond writes body as JSON and stores it for idempotent replay.
func (h *BaseHandler) respond(c *gin.Context, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		h.Error(c, apperror.NewInternal(fmt.Errorf("encode response: %w", err)))
		return
	}
	middleware.CompleteIdempotency(c, status, middleware.JSONContentType, payload)
	c.Data(status, middleware.JSONContentType, payload)
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.respond(c, http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.respond(c, http.StatusOK, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	// 204 must replay as 204 with empty body.
	middleware.CompleteIdempotency(c, http.StatusNoContent, "", nil)
	c.Status(http.StatusNoContent)
}
