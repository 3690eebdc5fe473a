package core

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"yieldpool/core/events"
)

const meterName = "yieldpool/core"

// instruments mirrors the prometheus operation metrics onto the OTel meter
// provider so OTLP exporters see the same domain signals.
type instruments struct {
	operations    metric.Int64Counter
	latency       metric.Float64Histogram
	discrepancies metric.Int64Counter
}

func newInstruments(provider metric.MeterProvider) (*instruments, error) {
	meter := provider.Meter(meterName)
	operations, err := meter.Int64Counter("yieldpool.node.operations",
		metric.WithDescription("Operations executed by the node, by outcome."),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, fmt.Errorf("core: operations counter: %w", err)
	}
	latency, err := meter.Float64Histogram("yieldpool.node.operation.duration",
		metric.WithDescription("Time spent executing an operation."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("core: latency histogram: %w", err)
	}
	discrepancies, err := meter.Int64Counter("yieldpool.pool.repayment_discrepancies",
		metric.WithDescription("Repayments whose principal exceeded the tracked deployed capital."),
		metric.WithUnit("{repayment}"))
	if err != nil {
		return nil, fmt.Errorf("core: discrepancy counter: %w", err)
	}
	return &instruments{operations: operations, latency: latency, discrepancies: discrepancies}, nil
}

// record notes one finished operation. receipt is nil when it was rejected.
func (i *instruments) record(ctx context.Context, op, outcome string, elapsed time.Duration, receipt *Receipt) {
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome))
	i.operations.Add(ctx, 1, attrs)
	i.latency.Record(ctx, elapsed.Seconds(), attrs)
	if receipt == nil {
		return
	}
	var clamped int64
	for _, evt := range receipt.Events {
		if evt != nil && evt.Type == events.TypePoolRepaymentDiscrepancy {
			clamped++
		}
	}
	if clamped > 0 {
		i.discrepancies.Add(ctx, clamped, metric.WithAttributes(attribute.String("operation", op)))
	}
}
