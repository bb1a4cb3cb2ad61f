// Package numerator provides the contract for tenant-scoped document numbering.
package numerator

import (
	"fmt"
	"time"
)

// Reset periods.
const (
	ResetMonthly = "month"
	ResetYearly  = "year"
	ResetNever   = "never"
)

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g. "INV")
	Prefix string

	// PeriodLayout is a time layout rendered between prefix and sequence.
	// Empty omits the period segment.
	PeriodLayout string

	// PadWidth is the minimum sequence width (default 5)
	PadWidth int

	// ResetPeriod: "month", "year", "never"
	ResetPeriod string
}

// InvoiceConfig renders INV-YYYYMM-00001 and restarts every month.
func InvoiceConfig() Config {
	return Config{
		Prefix:       "INV",
		PeriodLayout: "200601",
		PadWidth:     5,
		ResetPeriod:  ResetMonthly,
	}
}

// PeriodKey identifies the sequence bucket for period.
func (c Config) PeriodKey(period time.Time) string {
	switch c.ResetPeriod {
	case ResetMonthly:
		return period.Format("200601")
	case ResetYearly:
		return period.Format("2006")
	default:
		return "all"
	}
}

// Format renders a sequence value.
func (c Config) Format(period time.Time, seq int64) string {
	pad := c.PadWidth
	if pad <= 0 {
		pad = 5
	}
	if c.PeriodLayout == "" {
		return fmt.Sprintf("%s-%0*d", c.Prefix, pad, seq)
	}
	return fmt.Sprintf("%s-%s-%0*d", c.Prefix, period.Format(c.PeriodLayout), pad, seq)
}
