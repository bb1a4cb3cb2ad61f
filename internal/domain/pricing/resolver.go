// Package pricing turns a stored selling price and a product discount into
// the price actually charged.
//
// Rounding happens once per line: ResolvePrice keeps full precision, and
// LineSubtotal rounds unit×quantity half-up to two places. Invoice items
// store the unrounded unit price so subtotal = round(unit_price × quantity)
// holds exactly.
package pricing

import (
	"github.com/shopspring/decimal"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/types"
)

var hundred = decimal.NewFromInt(100)

// ResolvePrice returns sellingPrice - sellingPrice*discountPercent/100 without
// rounding. A nil discount means no discount.
func ResolvePrice(sellingPrice types.Money, discountPercent *decimal.Decimal) types.Money {
	if discountPercent == nil || discountPercent.IsZero() {
		return sellingPrice
	}
	return sellingPrice.Sub(sellingPrice.Mul(*discountPercent).Div(hundred))
}

// LineSubtotal is the rounded charge for quantity units at unitPrice.
func LineSubtotal(unitPrice types.Money, quantity int64) types.Money {
	return types.RoundMoney(unitPrice.Mul(decimal.NewFromInt(quantity)))
}

// ValidateDiscount checks a discount percentage is within 0..100.
func ValidateDiscount(discountPercent decimal.Decimal) error {
	if discountPercent.IsNegative() || discountPercent.GreaterThan(hundred) {
		return apperror.NewValidation("discount must be between 0 and 100").
			WithDetail("field", "discount").
			WithDetail("value", discountPercent.String())
	}
	return nil
}

// Quote is the priced form of one line.
type Quote struct {
	OriginalPrice   types.Money
	DiscountPercent decimal.Decimal
	UnitPrice       types.Money
	Subtotal        types.Money
}

// QuoteLine prices quantity units of a variant.
func QuoteLine(sellingPrice types.Money, discountPercent *decimal.Decimal, quantity int64) Quote {
	resolved := ResolvePrice(sellingPrice, discountPercent)
	q := Quote{
		OriginalPrice: sellingPrice,
		UnitPrice:     resolved,
		Subtotal:      LineSubtotal(resolved, quantity),
	}
	if discountPercent != nil {
		q.DiscountPercent = *discountPercent
	}
	return q
}
