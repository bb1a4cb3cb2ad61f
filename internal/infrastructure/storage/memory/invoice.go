package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/core/numerator"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/invoice"
)

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct {
	store *Store
}

// Invoices returns the invoice repository.
func (s *Store) Invoices() *InvoiceRepo { return &InvoiceRepo{store: s} }

var _ invoice.Repository = (*InvoiceRepo)(nil)

func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	return r.store.update(ctx, func(d *dataset) error {
		if _, ok := d.locations[inv.LocationID]; !ok {
			return apperror.NewNotFound("location", inv.LocationID)
		}
		for _, existing := range d.invoices {
			if existing.TenantID == inv.TenantID && existing.InvoiceNumber == inv.InvoiceNumber {
				return apperror.NewDuplicate("invoice", "invoice_number", inv.InvoiceNumber)
			}
		}
		header := *inv
		header.Items = nil
		d.invoices[inv.ID] = header
		for _, it := range inv.Items {
			if _, ok := d.variants[it.VariantID]; !ok {
				return apperror.NewNotFound("variant", it.VariantID)
			}
			it.InvoiceID = inv.ID
			d.items = append(d.items, it)
		}
		return nil
	})
}

func (r *InvoiceRepo) GetByID(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	var out *invoice.Invoice
	err := r.store.view(ctx, func(d *dataset) error {
		inv, ok := d.invoices[invoiceID]
		if !ok {
			return apperror.NewNotFound("invoice", invoiceID)
		}
		inv.LocationName = d.locations[inv.LocationID].Name
		inv.Items = []invoice.Item{}
		for _, it := range d.items {
			if it.InvoiceID != invoiceID {
				continue
			}
			variant := d.variants[it.VariantID]
			product := d.products[variant.ProductID]
			it.VariantName = variant.VariantName
			it.ProductID = product.ID
			it.ProductName = product.Name
			inv.Items = append(inv.Items, it)
		}
		out = &inv
		return nil
	})
	return out, err
}

func (r *InvoiceRepo) List(ctx context.Context, filter invoice.ListFilter) ([]invoice.Invoice, int, error) {
	var out []invoice.Invoice
	err := r.store.view(ctx, func(d *dataset) error {
		for _, inv := range d.invoices {
			if !matchInvoice(inv, filter) {
				continue
			}
			inv.LocationName = d.locations[inv.LocationID].Name
			out = append(out, inv)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return id.Less(out[j].ID, out[i].ID)
	})
	total := len(out)
	lo, hi := page(total, filter.Limit, filter.Offset)
	return out[lo:hi], total, nil
}

func (r *InvoiceRepo) Summarize(ctx context.Context, filter invoice.ListFilter) (*invoice.Summary, error) {
	sum := &invoice.Summary{Revenue: types.Zero(), Cost: types.Zero(), Gross: types.Zero()}
	err := r.store.view(ctx, func(d *dataset) error {
		matched := make(map[id.ID]struct{})
		for _, inv := range d.invoices {
			if !matchInvoice(inv, filter) {
				continue
			}
			matched[inv.ID] = struct{}{}
			sum.InvoiceCount++
			sum.Gross = sum.Gross.Add(inv.TotalAmount)
		}
		for _, it := range d.items {
			if _, ok := matched[it.InvoiceID]; !ok {
				continue
			}
			sum.Revenue = sum.Revenue.Add(it.Subtotal)
			sum.Cost = sum.Cost.Add(it.CostPrice.Mul(decimal.NewFromInt(it.Quantity)))
		}
		return nil
	})
	return sum, err
}

func matchInvoice(inv invoice.Invoice, filter invoice.ListFilter) bool {
	if inv.TenantID != filter.TenantID {
		return false
	}
	if filter.LocationID != nil && inv.LocationID != *filter.LocationID {
		return false
	}
	return inRange(inv.CreatedAt, filter.From, filter.To)
}

// Sequences reserves invoice numbers inside the caller's transaction.
type Sequences struct {
	store *Store
}

// Sequences returns the numbering generator.
func (s *Store) Sequences() *Sequences { return &Sequences{store: s} }

var _ numerator.Generator = (*Sequences)(nil)

// Next increments the (tenant, period) counter and formats the result.
func (g *Sequences) Next(ctx context.Context, tenantID id.ID, cfg numerator.Config, period time.Time) (string, error) {
	var seq int64
	err := g.store.update(ctx, func(d *dataset) error {
		key := sequenceKey{tenant: tenantID, prefix: cfg.Prefix, period: cfg.PeriodKey(period)}
		d.sequences[key]++
		seq = d.sequences[key]
		return nil
	})
	if err != nil {
		return "", err
	}
	return cfg.Format(period, seq), nil
}
