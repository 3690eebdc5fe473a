package core

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"yieldpool/core/events"
	"yieldpool/core/types"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != meterName {
			continue
		}
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s is %T, want int64 sum", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestInstrumentsRecordOperations(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	inst, err := newInstruments(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("instruments: %v", err)
	}
	ctx := context.Background()
	repaid := &Receipt{Events: []*types.Event{
		{Type: events.TypePoolRepaymentReceived},
		{Type: events.TypePoolRepaymentDiscrepancy},
	}}
	inst.record(ctx, "kernel.repay_loan", "success", 3*time.Millisecond, repaid)
	inst.record(ctx, "pool.deposit", "economic", time.Millisecond, nil)
	inst.record(ctx, "pool.deposit", "success", time.Millisecond, &Receipt{})

	metrics := collectMetrics(t, reader)
	ops, ok := metrics["yieldpool.node.operations"]
	if !ok {
		t.Fatalf("operations counter not exported")
	}
	if got := sumFor(t, ops, "outcome", "success"); got != 2 {
		t.Fatalf("success count = %d, want 2", got)
	}
	if got := sumFor(t, ops, "outcome", "economic"); got != 1 {
		t.Fatalf("economic count = %d, want 1", got)
	}

	hist, ok := metrics["yieldpool.node.operation.duration"].Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("latency histogram not exported")
	}
	var samples uint64
	for _, dp := range hist.DataPoints {
		samples += dp.Count
	}
	if samples != 3 {
		t.Fatalf("latency samples = %d, want 3", samples)
	}

	clamped, ok := metrics["yieldpool.pool.repayment_discrepancies"]
	if !ok {
		t.Fatalf("discrepancy counter not exported")
	}
	if got := sumFor(t, clamped, "operation", "kernel.repay_loan"); got != 1 {
		t.Fatalf("discrepancies = %d, want 1", got)
	}
}
