package handlers

import (
	"github.com/gin-gonic/gin"

	"retailpos/internal/core/security"
	"retailpos/internal/domain/auth"
	"retailpos/internal/infrastructure/http/v1/dto"
	"retailpos/internal/infrastructure/http/v1/middleware"
)

// AuthHandler handles authentication and user endpoints.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.ToCredentials())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context()); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	me, err := h.service.Me(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, me)
}

// SwitchContext handles POST /auth/switch-context
func (h *AuthHandler) SwitchContext(c *gin.Context) {
	var req dto.SwitchContextRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	me, err := h.service.SwitchContext(c.Request.Context(), req.TenantID, req.LocationID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, me)
}

// CreateUser handles POST /users
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if !h.BindJSON(c, &req) {
		return
	}

	user, err := h.service.CreateUser(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, user)
}

// ListUsers handles GET /users
func (h *AuthHandler) ListUsers(c *gin.Context) {
	tenantID, ok := h.QueryID(c, "tenant_id")
	if !ok {
		return
	}
	locationID, ok := h.QueryOptionalID(c, "location_id")
	if !ok {
		return
	}
	page := h.Page(c)

	users, total, err := h.service.ListUsers(c.Request.Context(), auth.UserFilter{
		TenantID:   tenantID,
		LocationID: locationID,
		Role:       security.Role(c.Query("role")),
		Search:     c.Query("search"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(users, total, page))
}

// GetUser handles GET /users/:id
func (h *AuthHandler) GetUser(c *gin.Context) {
	userID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	user, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, user)
}

// UpdateUser handles PUT /users/:id
func (h *AuthHandler) UpdateUser(c *gin.Context) {
	userID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateUserRequest
	if !h.BindJSON(c, &req) {
		return
	}

	user, err := h.service.UpdateUser(c.Request.Context(), userID, req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, user)
}

// DeactivateUser handles DELETE /users/:id
func (h *AuthHandler) DeactivateUser(c *gin.Context) {
	userID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeactivateUser(c.Request.Context(), userID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// ListLocationUsers handles GET /users/by-location/:locationId
func (h *AuthHandler) ListLocationUsers(c *gin.Context) {
	locationID, ok := h.ParamID(c, "locationId")
	if !ok {
		return
	}
	page := h.Page(c)

	users, total, err := h.service.ListUsers(c.Request.Context(), auth.UserFilter{
		LocationID: &locationID,
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(users, total, page))
}

// RegisterRoutes registers auth and user routes.
func (h *AuthHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	// Public routes (no auth required)
	public.POST("/auth/login", h.Login)

	// Protected routes (auth required)
	protected.POST("/auth/logout", h.Logout)
	protected.GET("/auth/me", h.Me)
	protected.POST("/auth/switch-context", h.SwitchContext)

	users := protected.Group("/users", middleware.RequireRole(security.RoleStoreAdmin))
	users.GET("", h.ListUsers)
	users.POST("", h.CreateUser)
	users.GET("/by-location/:locationId", h.ListLocationUsers)
	users.GET("/:id", h.GetUser)
	users.PUT("/:id", h.UpdateUser)
	users.DELETE("/:id", h.DeactivateUser)
}
