package inventory

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "retailpos/inventory"

type ledgerMetrics struct {
	stockIn      metric.Int64Counter
	stockOut     metric.Int64Counter
	insufficient metric.Int64Counter
}

func newLedgerMetrics() *ledgerMetrics {
	meter := otel.Meter(meterName)
	return &ledgerMetrics{
		stockIn:      counter(meter, "inventory.stock_in.units", "Units received through stock-in"),
		stockOut:     counter(meter, "inventory.stock_out.units", "Units deducted by sales"),
		insufficient: counter(meter, "inventory.insufficient_stock", "Deductions rejected for insufficient stock"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}
