package handlers

import (
	"github.com/gin-gonic/gin"

	"retailpos/internal/domain/inventory"
	"retailpos/internal/infrastructure/http/v1/dto"
)

// InventoryHandler serves stock intake and stock queries.
type InventoryHandler struct {
	*BaseHandler
	service *inventory.Service
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, service *inventory.Service) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler: base,
		service:     service,
	}
}

// StockIn handles POST /inventory/stock-in
func (h *InventoryHandler) StockIn(c *gin.Context) {
	var req dto.StockInRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := h.service.StockIn(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, inv)
}

// CheckStock handles GET /inventory/check-stock
func (h *InventoryHandler) CheckStock(c *gin.Context) {
	tenantID, ok := h.QueryID(c, "tenant_id")
	if !ok {
		return
	}
	locationID, ok := h.QueryID(c, "location_id")
	if !ok {
		return
	}
	variantID, ok := h.QueryID(c, "variant_id")
	if !ok {
		return
	}

	check, err := h.service.CheckStock(c.Request.Context(), tenantID, locationID, variantID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, check)
}

// Movements handles GET /inventory/movements
func (h *InventoryHandler) Movements(c *gin.Context) {
	tenantID, ok := h.QueryID(c, "tenant_id")
	if !ok {
		return
	}
	locationID, ok := h.QueryID(c, "location_id")
	if !ok {
		return
	}
	variantID, ok := h.QueryOptionalID(c, "variant_id")
	if !ok {
		return
	}
	from, ok := h.QueryTime(c, "from", false)
	if !ok {
		return
	}
	to, ok := h.QueryTime(c, "to", true)
	if !ok {
		return
	}
	page := h.Page(c)

	movements, err := h.service.GetMovements(c.Request.Context(), tenantID, inventory.MovementFilter{
		LocationID: locationID,
		VariantID:  variantID,
		From:       from,
		To:         to,
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ItemsResponse{Items: movements})
}

// Status handles GET /inventory/status
func (h *InventoryHandler) Status(c *gin.Context) {
	tenantID, ok := h.QueryID(c, "tenant_id")
	if !ok {
		return
	}
	locationID, ok := h.QueryOptionalID(c, "location_id")
	if !ok {
		return
	}
	productID, ok := h.QueryOptionalID(c, "product_id")
	if !ok {
		return
	}

	status, err := h.service.GetStockStatus(c.Request.Context(), inventory.StockFilter{
		TenantID:   tenantID,
		LocationID: locationID,
		ProductID:  productID,
		Category:   c.Query("category"),
		Search:     c.Query("search"),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ItemsResponse{Items: status})
}

// Report handles GET /inventory/report
func (h *InventoryHandler) Report(c *gin.Context) {
	tenantID, ok := h.QueryID(c, "tenant_id")
	if !ok {
		return
	}
	locationID, ok := h.QueryID(c, "location_id")
	if !ok {
		return
	}

	report, err := h.service.LocalStockReport(c.Request.Context(), tenantID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, report)
}

// RegisterRoutes registers inventory routes. idempotent guards stock intake.
func (h *InventoryHandler) RegisterRoutes(protected *gin.RouterGroup, idempotent gin.HandlerFunc) {
	g := protected.Group("/inventory")
	g.POST("/stock-in", idempotent, h.StockIn)
	g.GET("/check-stock", h.CheckStock)
	g.GET("/movements", h.Movements)
	g.GET("/status", h.Status)
	g.GET("/report", h.Report)
}
