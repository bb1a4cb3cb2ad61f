package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"retailpos/internal/domain/invoice"
	"retailpos/internal/infrastructure/http/v1/dto"
)

// InvoiceHandler serves checkout and sales queries.
type InvoiceHandler struct {
	*BaseHandler
	service *invoice.Service
	now     func() time.Time
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(base *BaseHandler, service *invoice.Service) *InvoiceHandler {
	return &InvoiceHandler{
		BaseHandler: base,
		service:     service,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create handles POST /invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := h.service.CreateInvoice(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, inv)
}

// Get handles GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	inv, err := h.service.GetByID(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, inv)
}

// History handles GET /invoices/:id/history
func (h *InvoiceHandler) History(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	entries, err := h.service.History(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, entries)
}

// List handles GET /invoices. A date range selects ListByDateRange, a
// location alone ListByLocation, otherwise the whole tenant is listed.
func (h *InvoiceHandler) List(c *gin.Context) {
	tenantID, ok := h.QueryID(c, "tenant_id")
	if !ok {
		return
	}
	locationID, ok := h.QueryOptionalID(c, "location_id")
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
	ctx := c.Request.Context()

	var (
		items []invoice.Invoice
		total int
		err   error
	)
	switch {
	case from != nil && to != nil:
		items, total, err = h.service.ListByDateRange(ctx, tenantID, locationID, *from, *to, page.Limit, page.Offset)
	case from != nil || to != nil:
		items, total, err = h.service.List(ctx, invoice.ListFilter{
			TenantID: tenantID, LocationID: locationID, From: from, To: to,
			Limit: page.Limit, Offset: page.Offset,
		})
	case locationID != nil:
		items, total, err = h.service.ListByLocation(ctx, tenantID, *locationID, page.Limit, page.Offset)
	default:
		items, total, err = h.service.ListByTenant(ctx, tenantID, page.Limit, page.Offset)
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(items, total, page))
}

// Profit handles GET /invoices/profit
func (h *InvoiceHandler) Profit(c *gin.Context) {
	tenantID, ok := h.QueryID(c, "tenant_id")
	if !ok {
		return
	}
	locationID, ok := h.QueryOptionalID(c, "location_id")
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

	report, err := h.service.CalculateProfit(c.Request.Context(), tenantID, locationID, from, to)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, report)
}

// DailySales handles GET /invoices/daily-sales. The day defaults to today (UTC).
func (h *InvoiceHandler) DailySales(c *gin.Context) {
	tenantID, ok := h.QueryID(c, "tenant_id")
	if !ok {
		return
	}
	locationID, ok := h.QueryOptionalID(c, "location_id")
	if !ok {
		return
	}
	day, ok := h.QueryTime(c, "date", false)
	if !ok {
		return
	}
	if day == nil {
		now := h.now()
		day = &now
	}

	sales, err := h.service.DailySales(c.Request.Context(), tenantID, locationID, *day)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, sales)
}

// RegisterRoutes registers invoice routes. idempotent guards checkout.
func (h *InvoiceHandler) RegisterRoutes(protected *gin.RouterGroup, idempotent gin.HandlerFunc) {
	g := protected.Group("/invoices")
	g.POST("", idempotent, h.Create)
	g.GET("", h.List)
	g.GET("/profit", h.Profit)
	g.GET("/daily-sales", h.DailySales)
	g.GET("/:id", h.Get)
	g.GET("/:id/history", h.History)
}

