package invoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/core/numerator"
	"retailpos/internal/core/security"
	"retailpos/internal/core/tx"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/audit"
	"retailpos/internal/domain/inventory"
	"retailpos/internal/domain/pricing"
	"retailpos/pkg/logger"
)

// Config tunes the sale transaction.
type Config struct {
	// LockTimeout bounds the wait for inventory row locks.
	LockTimeout time.Duration
	// StatementTimeout bounds every statement of the sale.
	StatementTimeout time.Duration
	// MaxAttempts is how many times a sale is run when it loses a
	// serialization race. Values below 1 mean 1.
	MaxAttempts int
	// RetryBackoff is the first wait between attempts; later waits grow
	// and are jittered.
	RetryBackoff time.Duration
	// Numbering renders invoice numbers.
	Numbering numerator.Config
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		LockTimeout:      5 * time.Second,
		StatementTimeout: 15 * time.Second,
		MaxAttempts:      3,
		RetryBackoff:     20 * time.Millisecond,
		Numbering:        numerator.InvoiceConfig(),
	}
}

// Service is the sale coordinator and the read side of invoices.
type Service struct {
	repo      Repository
	ledger    StockLedger
	numbers   numerator.Generator
	guard     *security.Guard
	txManager tx.Manager
	audit     audit.Recorder
	config    Config
	metrics   *saleMetrics
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService creates the invoice service.
func NewService(
	repo Repository,
	ledger StockLedger,
	numbers numerator.Generator,
	guard *security.Guard,
	txManager tx.Manager,
	recorder audit.Recorder,
	config Config,
) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultConfig().RetryBackoff
	}
	if config.Numbering.Prefix == "" {
		config.Numbering = numerator.InvoiceConfig()
	}
	return &Service{
		repo:      repo,
		ledger:    ledger,
		numbers:   numbers,
		guard:     guard,
		txManager: txManager,
		audit:     recorder,
		config:    config,
		metrics:   newSaleMetrics(),
		tracer:    otel.Tracer("retailpos/invoice"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateInvoice turns a cart into a committed sale.
//
// Either everything commits (invoice header, items, stock deductions, one
// stock_out movement per line) or nothing does. Once the transaction has
// started it runs to completion even if the caller goes away.
func (s *Service) CreateInvoice(ctx context.Context, req CreateRequest) (*Invoice, error) {
	_, target, err := s.guard.Location(ctx, req.TenantID, req.LocationID)
	if err != nil {
		return nil, err
	}
	req.TenantID = target.TenantID
	req.LocationID = target.LocationID

	lines, err := normalizeLines(req.Items)
	if err != nil {
		return nil, err
	}
	req.Items = lines
	if req.TaxAmount != nil && req.TaxAmount.IsNegative() {
		return nil, apperror.NewValidation("tax amount must not be negative").WithDetail("field", "tax_amount")
	}
	if req.ChangeAmount != nil && req.ChangeAmount.IsNegative() {
		return nil, apperror.NewValidation("change amount must not be negative").WithDetail("field", "change_amount")
	}

	ctx, span := s.tracer.Start(ctx, "invoice.Create", trace.WithAttributes(
		attribute.String("tenant_id", req.TenantID.String()),
		attribute.String("location_id", req.LocationID.String()),
		attribute.Int("lines", len(req.Items)),
	))
	defer span.End()

	// Detached so a client disconnect cannot abort a half-applied sale.
	txCtx := context.WithoutCancel(ctx)
	opts := tx.Options{
		Isolation:        tx.RepeatableRead,
		LockTimeout:      s.config.LockTimeout,
		StatementTimeout: s.config.StatementTimeout,
	}

	// Sales of one tenant contend on its sequence row, so a lost race waits
	// a jittered, growing interval before the next attempt.
	wait := backoff.NewExponentialBackOff()
	wait.InitialInterval = s.config.RetryBackoff
	wait.MaxInterval = 8 * s.config.RetryBackoff

	inv, err := backoff.Retry(txCtx, func() (*Invoice, error) {
		var inv *Invoice
		err := s.txManager.RunInTransactionWithOptions(txCtx, opts, func(ctx context.Context) error {
			var err error
			inv, err = s.createOnce(ctx, req)
			return err
		})
		if err != nil && !apperror.HasCode(err, apperror.CodeConcurrentUpdate) {
			return nil, backoff.Permanent(err)
		}
		return inv, err
	},
		backoff.WithBackOff(wait),
		backoff.WithMaxTries(uint(s.config.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.metrics.retries.Add(ctx, 1)
			logger.Warn(ctx, "sale lost a serialization race, retrying", "wait", next)
		}),
	)
	if err != nil {
		code := apperror.CodeInternal
		if appErr, ok := apperror.AsAppError(err); ok {
			code = appErr.Code
		}
		s.metrics.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		return nil, err
	}

	s.metrics.created.Add(ctx, 1)
	span.SetAttributes(attribute.String("invoice_number", inv.InvoiceNumber))
	logger.Info(ctx, "invoice created",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"total", inv.TotalAmount.String(),
		"lines", len(inv.Items))
	return inv, nil
}

func (s *Service) createOnce(ctx context.Context, req CreateRequest) (*Invoice, error) {
	variantIDs := make([]id.ID, len(req.Items))
	for i, line := range req.Items {
		variantIDs[i] = line.VariantID
	}
	stock, err := s.ledger.LockForSale(ctx, req.LocationID, variantIDs)
	if err != nil {
		return nil, err
	}

	// All checks run before any write.
	checks := make([]*inventory.StockCheck, len(req.Items))
	for i, line := range req.Items {
		check := stock[line.VariantID]
		if !check.Available || check.Quantity < line.Quantity {
			return nil, apperror.NewInsufficientStock(line.VariantID.String(), line.Quantity, check.Quantity)
		}
		checks[i] = check
	}

	now := s.now()
	number, err := s.numbers.Next(ctx, req.TenantID, s.config.Numbering, now)
	if err != nil {
		return nil, fmt.Errorf("reserve invoice number: %w", err)
	}

	inv := &Invoice{
		ID:            id.New(),
		TenantID:      req.TenantID,
		LocationID:    req.LocationID,
		InvoiceNumber: number,
		TaxAmount:     types.Zero(),
		ChangeAmount:  req.ChangeAmount,
		CreatedAt:     now,
		Items:         make([]Item, len(req.Items)),
	}
	if req.TaxAmount != nil {
		inv.TaxAmount = types.RoundMoney(*req.TaxAmount)
	}
	if name := strings.TrimSpace(req.CustomerName); name != "" {
		inv.CustomerName = &name
	}
	if scope, err := security.GetScope(ctx); err == nil && !id.IsNil(scope.UserID) {
		uid := scope.UserID
		inv.CreatedBy = &uid
	}

	for i, line := range req.Items {
		check := checks[i]
		discount := check.Discount
		quote := pricing.QuoteLine(check.SellingPrice, &discount, line.Quantity)
		inv.Items[i] = Item{
			ID:              id.New(),
			InvoiceID:       inv.ID,
			VariantID:       line.VariantID,
			Quantity:        line.Quantity,
			UnitPrice:       quote.UnitPrice,
			CostPrice:       check.CostPrice,
			OriginalPrice:   quote.OriginalPrice,
			DiscountPercent: quote.DiscountPercent,
			Subtotal:        quote.Subtotal,
		}
	}
	inv.TotalAmount = inv.ItemsTotal().Add(inv.TaxAmount)

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	ref := inv.ID
	for _, line := range req.Items {
		if _, err := s.ledger.DeductStock(ctx, inventory.DeductRequest{
			TenantID:    req.TenantID,
			LocationID:  req.LocationID,
			VariantID:   line.VariantID,
			Quantity:    line.Quantity,
			ReferenceID: &ref,
		}); err != nil {
			return nil, err
		}
	}

	entry, err := audit.NewEntry(ctx, req.TenantID, "invoice", inv.ID, audit.ActionSale, map[string]any{
		"invoice_number": inv.InvoiceNumber,
		"location_id":    inv.LocationID,
		"total_amount":   inv.TotalAmount,
		"lines":          len(inv.Items),
	})
	if err != nil {
		return nil, err
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return nil, fmt.Errorf("record audit: %w", err)
	}

	return s.repo.GetByID(ctx, inv.ID)
}

// normalizeLines rejects empty carts and non-positive quantities and merges
// repeated variants into one line, keeping first-seen order.
func normalizeLines(lines []LineRequest) ([]LineRequest, error) {
	if len(lines) == 0 {
		return nil, apperror.NewValidation("invoice must have at least one item").WithDetail("field", "items")
	}
	index := make(map[id.ID]int, len(lines))
	out := make([]LineRequest, 0, len(lines))
	for i, line := range lines {
		if id.IsNil(line.VariantID) {
			return nil, apperror.NewValidation("variant is required").
				WithDetail("field", fmt.Sprintf("items[%d].variant_id", i))
		}
		if line.Quantity <= 0 {
			return nil, apperror.NewValidation("quantity must be greater than zero").
				WithDetail("field", fmt.Sprintf("items[%d].quantity", i))
		}
		if j, ok := index[line.VariantID]; ok {
			out[j].Quantity += line.Quantity
			continue
		}
		index[line.VariantID] = len(out)
		out = append(out, line)
	}
	return out, nil
}

// GetByID returns an invoice with its items. Invoices outside the caller's
// scope are reported as not found.
func (s *Service) GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	scope, err := security.GetScope(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := s.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !scope.IsSuperAdmin() {
		if inv.TenantID != scope.TenantID ||
			(scope.Role == security.RoleLocationUser && inv.LocationID != scope.LocationID) {
			return nil, apperror.NewNotFound("invoice", invoiceID)
		}
	}
	return inv, nil
}

// historyLimit caps the audit entries returned for one invoice.
const historyLimit = 50

// History returns the audit trail of an invoice, newest first. The invoice
// must be visible to the caller.
func (s *Service) History(ctx context.Context, invoiceID id.ID) ([]audit.Entry, error) {
	inv, err := s.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	entries, err := s.audit.History(ctx, "invoice", inv.ID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("invoice history: %w", err)
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return entries, nil
}

// List returns invoice headers in scope, newest first, with the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, 0, apperror.NewValidation("end date must not be before start date").WithDetail("field", "to")
	}
	var locationReq id.ID
	if filter.LocationID != nil {
		locationReq = *filter.LocationID
	}
	_, target, err := s.guard.LocationFilter(ctx, filter.TenantID, locationReq)
	if err != nil {
		return nil, 0, err
	}
	filter.TenantID = target.TenantID
	filter.LocationID = nil
	if !id.IsNil(target.LocationID) {
		loc := target.LocationID
		filter.LocationID = &loc
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// ListByLocation returns the invoices of one location.
func (s *Service) ListByLocation(ctx context.Context, tenantID, locationID id.ID, limit, offset int) ([]Invoice, int, error) {
	_, target, err := s.guard.Location(ctx, tenantID, locationID)
	if err != nil {
		return nil, 0, err
	}
	loc := target.LocationID
	return s.List(ctx, ListFilter{TenantID: target.TenantID, LocationID: &loc, Limit: limit, Offset: offset})
}

// ListByTenant returns the invoices of a whole tenant. Location users only
// ever see their own location.
func (s *Service) ListByTenant(ctx context.Context, tenantID id.ID, limit, offset int) ([]Invoice, int, error) {
	return s.List(ctx, ListFilter{TenantID: tenantID, Limit: limit, Offset: offset})
}

// ListByDateRange returns invoices created in [from, to].
func (s *Service) ListByDateRange(ctx context.Context, tenantID id.ID, locationID *id.ID, from, to time.Time, limit, offset int) ([]Invoice, int, error) {
	return s.List(ctx, ListFilter{
		TenantID:   tenantID,
		LocationID: locationID,
		From:       &from,
		To:         &to,
		Limit:      limit,
		Offset:     offset,
	})
}

// CalculateProfit reports revenue (item subtotals) against cost of goods for
// the invoices in scope. Either bound may be nil.
func (s *Service) CalculateProfit(ctx context.Context, tenantID id.ID, locationID *id.ID, from, to *time.Time) (*ProfitReport, error) {
	filter, err := s.summaryFilter(ctx, tenantID, locationID, from, to)
	if err != nil {
		return nil, err
	}
	sum, err := s.repo.Summarize(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("summarize invoices: %w", err)
	}
	revenue := types.RoundMoney(sum.Revenue)
	cost := types.RoundMoney(sum.Cost)
	return &ProfitReport{
		From:         from,
		To:           to,
		Revenue:      revenue,
		Cost:         cost,
		Profit:       revenue.Sub(cost),
		InvoiceCount: sum.InvoiceCount,
	}, nil
}

// DailySales reports the takings of one UTC calendar day.
func (s *Service) DailySales(ctx context.Context, tenantID id.ID, locationID *id.ID, day time.Time) (*DailySales, error) {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Nanosecond)

	filter, err := s.summaryFilter(ctx, tenantID, locationID, &start, &end)
	if err != nil {
		return nil, err
	}
	sum, err := s.repo.Summarize(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("summarize invoices: %w", err)
	}
	return &DailySales{
		Date:         start.Format(time.DateOnly),
		LocationID:   filter.LocationID,
		TotalRevenue: types.RoundMoney(sum.Gross),
		InvoiceCount: sum.InvoiceCount,
	}, nil
}

func (s *Service) summaryFilter(ctx context.Context, tenantID id.ID, locationID *id.ID, from, to *time.Time) (ListFilter, error) {
	if from != nil && to != nil && to.Before(*from) {
		return ListFilter{}, apperror.NewValidation("end date must not be before start date").WithDetail("field", "to")
	}
	var locationReq id.ID
	if locationID != nil {
		locationReq = *locationID
	}
	_, target, err := s.guard.LocationFilter(ctx, tenantID, locationReq)
	if err != nil {
		return ListFilter{}, err
	}
	filter := ListFilter{TenantID: target.TenantID, From: from, To: to}
	if !id.IsNil(target.LocationID) {
		loc := target.LocationID
		filter.LocationID = &loc
	}
	return filter, nil
}
