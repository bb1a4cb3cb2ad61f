package numerator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvoiceConfig_Format(t *testing.T) {
	cfg := InvoiceConfig()
	period := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "INV-202603-00001", cfg.Format(period, 1))
	assert.Equal(t, "INV-202603-00042", cfg.Format(period, 42))
	assert.Equal(t, "INV-202603-123456", cfg.Format(period, 123456))
	assert.Equal(t, "202603", cfg.PeriodKey(period))
}

func TestConfig_PeriodKey(t *testing.T) {
	period := time.Date(2026, time.December, 31, 23, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026", Config{ResetPeriod: ResetYearly}.PeriodKey(period))
	assert.Equal(t, "all", Config{ResetPeriod: ResetNever}.PeriodKey(period))
	assert.Equal(t, "GR-00007", Config{Prefix: "GR"}.Format(period, 7))
}
