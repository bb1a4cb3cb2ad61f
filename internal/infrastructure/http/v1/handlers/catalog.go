package handlers

import (
	"github.com/gin-gonic/gin"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/security"
	"retailpos/internal/domain/catalog"
	"retailpos/internal/infrastructure/http/v1/dto"
	"retailpos/internal/infrastructure/http/v1/middleware"
)

// CatalogHandler serves tenants, locations and products.
type CatalogHandler struct {
	*BaseHandler
	service *catalog.Service
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(base *BaseHandler, service *catalog.Service) *CatalogHandler {
	return &CatalogHandler{
		BaseHandler: base,
		service:     service,
	}
}

// --- Tenants ---

// Signup handles POST /tenants/signup
func (h *CatalogHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tenant, adminID, err := h.service.Signup(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.SignupResponse{Tenant: tenant, AdminUserID: adminID.String()})
}

// ListTenants handles GET /tenants
func (h *CatalogHandler) ListTenants(c *gin.Context) {
	page := h.Page(c)

	tenants, total, err := h.service.ListTenants(c.Request.Context(), catalog.TenantFilter{
		Status: catalog.SubscriptionStatus(c.Query("status")),
		Search: c.Query("search"),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(tenants, total, page))
}

// GetTenant handles GET /tenants/:id
func (h *CatalogHandler) GetTenant(c *gin.Context) {
	tenantID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	tenant, err := h.service.GetTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, tenant)
}

// UpdateTenant handles PATCH /tenants/:id
func (h *CatalogHandler) UpdateTenant(c *gin.Context) {
	tenantID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateTenantRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tenant, err := h.service.UpdateTenant(c.Request.Context(), tenantID, req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, tenant)
}

// DeleteTenant handles DELETE /tenants/:id
func (h *CatalogHandler) DeleteTenant(c *gin.Context) {
	tenantID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteTenant(c.Request.Context(), tenantID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// --- Locations ---

// ListLocations handles GET /locations
func (h *CatalogHandler) ListLocations(c *gin.Context) {
	tenantID, ok := h.QueryID(c, "tenant_id")
	if !ok {
		return
	}

	locations, err := h.service.ListLocations(c.Request.Context(), tenantID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ItemsResponse{Items: locations})
}

// CreateLocation handles POST /locations
func (h *CatalogHandler) CreateLocation(c *gin.Context) {
	var req dto.LocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	loc, err := h.service.CreateLocation(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, loc)
}

// GetLocation handles GET /locations/:id
func (h *CatalogHandler) GetLocation(c *gin.Context) {
	locationID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	loc, err := h.service.GetLocation(c.Request.Context(), locationID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, loc)
}

// UpdateLocation handles PUT /locations/:id
func (h *CatalogHandler) UpdateLocation(c *gin.Context) {
	locationID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.LocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	loc, err := h.service.UpdateLocation(c.Request.Context(), locationID, req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, loc)
}

// DeleteLocation handles DELETE /locations/:id
func (h *CatalogHandler) DeleteLocation(c *gin.Context) {
	locationID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteLocation(c.Request.Context(), locationID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// --- Products ---

// ListProducts handles GET /products
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	tenantID, ok := h.QueryID(c, "tenant_id")
	if !ok {
		return
	}
	page := h.Page(c)

	products, total, err := h.service.ListProducts(c.Request.Context(), catalog.ProductFilter{
		TenantID: tenantID,
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(products, total, page))
}

// GetProductByCode handles GET /products/by-code/:code
func (h *CatalogHandler) GetProductByCode(c *gin.Context) {
	tenantID, ok := h.QueryID(c, "tenant_id")
	if !ok {
		return
	}

	p, err := h.service.GetProductByCode(c.Request.Context(), tenantID, c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, p)
}

// CreateProduct handles POST /products
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.CreateProduct(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, p)
}

// GetProduct handles GET /products/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	productID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	p, err := h.service.GetProduct(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, p)
}

// UpdateProduct handles PATCH /products/:id
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	productID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.UpdateProduct(c.Request.Context(), productID, req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, p)
}

// DeleteProduct handles DELETE /products/:id
func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	productID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(c.Request.Context(), productID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// AddVariant handles POST /products/:id/variants
func (h *CatalogHandler) AddVariant(c *gin.Context) {
	productID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.AddVariantRequest
	if !h.BindJSON(c, &req) {
		return
	}

	v, err := h.service.AddVariant(c.Request.Context(), productID, req.VariantName)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, v)
}

// DeleteVariant handles DELETE /products/:id/variants/:variantId
func (h *CatalogHandler) DeleteVariant(c *gin.Context) {
	productID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	variantID, ok := h.ParamID(c, "variantId")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	p, err := h.service.GetProduct(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	found := false
	for _, v := range p.Variants {
		if v.ID == variantID {
			found = true
			break
		}
	}
	if !found {
		h.Error(c, apperror.NewNotFound("variant", variantID))
		return
	}

	if err := h.service.DeleteVariant(ctx, variantID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// --- System ---

// SystemOverview handles GET /system/overview
func (h *CatalogHandler) SystemOverview(c *gin.Context) {
	ov, err := h.service.SystemOverview(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, ov)
}

// RegisterRoutes registers catalog routes.
func (h *CatalogHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/tenants/signup", h.Signup)

	tenants := protected.Group("/tenants")
	tenants.GET("", h.ListTenants)
	tenants.GET("/:id", h.GetTenant)
	tenants.PATCH("/:id", h.UpdateTenant)
	tenants.DELETE("/:id", h.DeleteTenant)

	locations := protected.Group("/locations")
	locations.GET("", h.ListLocations)
	locations.POST("", h.CreateLocation)
	locations.GET("/:id", h.GetLocation)
	locations.PUT("/:id", h.UpdateLocation)
	locations.DELETE("/:id", h.DeleteLocation)

	products := protected.Group("/products")
	products.GET("", h.ListProducts)
	products.POST("", h.CreateProduct)
	products.GET("/by-code/:code", h.GetProductByCode)
	products.GET("/:id", h.GetProduct)
	products.PATCH("/:id", h.UpdateProduct)
	products.DELETE("/:id", h.DeleteProduct)
	products.POST("/:id/variants", h.AddVariant)
	products.DELETE("/:id/variants/:variantId", h.DeleteVariant)

	protected.GET("/system/overview", middleware.RequireRole(security.RoleSuperAdmin), h.SystemOverview)
}
