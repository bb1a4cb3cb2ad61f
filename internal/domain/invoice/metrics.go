package invoice

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type saleMetrics struct {
	created  metric.Int64Counter
	rejected metric.Int64Counter
	retries  metric.Int64Counter
}

func newSaleMetrics() *saleMetrics {
	meter := otel.Meter("retailpos/invoice")
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			return noop.Int64Counter{}
		}
		return c
	}
	return &saleMetrics{
		created:  counter("invoice.created", "Invoices committed"),
		rejected: counter("invoice.rejected", "Sales rejected, by error code"),
		retries:  counter("invoice.retries", "Sale transactions retried after a concurrent update"),
	}
}
