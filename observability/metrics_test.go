package observability

import (
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// gathered returns the family registered under name in the default registry.
func gathered(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	t.Fatalf("metric %s not registered", name)
	return nil
}

func labelled(family *dto.MetricFamily, labels map[string]string) *dto.Metric {
	for _, metric := range family.GetMetric() {
		matched := 0
		for _, pair := range metric.GetLabel() {
			if want, ok := labels[pair.GetName()]; ok && want == pair.GetValue() {
				matched++
			}
		}
		if matched == len(labels) {
			return metric
		}
	}
	return nil
}

func TestPoolMetricsRecordOperations(t *testing.T) {
	m := Pool()
	m.ObserveOperation("pool.deposit", "", 5*time.Millisecond)
	m.ObserveOperation("pool.deposit", "economic", time.Millisecond)
	m.ObserveOperation(" ", "success", time.Millisecond)

	family := gathered(t, "yieldpool_node_operations_total")
	if metric := labelled(family, map[string]string{"operation": "pool.deposit", "outcome": "success"}); metric == nil || metric.GetCounter().GetValue() < 1 {
		t.Fatalf("expected a successful deposit to be counted")
	}
	if metric := labelled(family, map[string]string{"operation": "pool.deposit", "outcome": "economic"}); metric == nil {
		t.Fatalf("expected economic outcome label")
	}
	if metric := labelled(family, map[string]string{"operation": "unknown"}); metric == nil {
		t.Fatalf("expected blank operation to map to unknown")
	}
}

func TestPoolMetricsPublishState(t *testing.T) {
	m := Pool()
	m.SetPoolState(big.NewInt(400), big.NewInt(1_000), big.NewInt(600))

	if got := gathered(t, "yieldpool_pool_total_shares").GetMetric()[0].GetGauge().GetValue(); got != 400 {
		t.Fatalf("total shares gauge = %v", got)
	}
	if got := gathered(t, "yieldpool_pool_capital_deployed").GetMetric()[0].GetGauge().GetValue(); got != 600 {
		t.Fatalf("capital deployed gauge = %v", got)
	}

	m.SetPoolState(nil, nil, nil)
	if got := gathered(t, "yieldpool_pool_managed_assets").GetMetric()[0].GetGauge().GetValue(); got != 0 {
		t.Fatalf("nil amounts should reset gauges, got %v", got)
	}
}

func TestEventsRecordSplitsModule(t *testing.T) {
	Events().Record("Kernel.Capital_Deployed")
	Events().Record("")

	family := gathered(t, "yieldpool_events_emitted_total")
	if metric := labelled(family, map[string]string{"module": "kernel", "type": "kernel.capital_deployed"}); metric == nil {
		t.Fatalf("expected kernel module label")
	}
	if metric := labelled(family, map[string]string{"module": "unknown", "type": "unknown"}); metric == nil {
		t.Fatalf("expected empty type to map to unknown")
	}
}

func TestModuleMetricsCountThrottles(t *testing.T) {
	ModuleMetrics().RecordThrottle("pool", "")
	family := gathered(t, "yieldpool_gateway_throttles_total")
	if metric := labelled(family, map[string]string{"module": "pool", "reason": "unspecified"}); metric == nil || metric.GetCounter().GetValue() < 1 {
		t.Fatalf("expected throttle to be counted")
	}
}

func TestBigToFloatHandlesHugeValues(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 2000)
	if got := bigToFloat(huge); got != 0 {
		t.Fatalf("expected overflow to clamp to 0, got %v", got)
	}
}
