package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	poolMetricsOnce sync.Once
	poolRegistry    *PoolMetrics
)

// ModuleMetrics returns the lazily-initialised registry recording gateway
// requests per module and method.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "yieldpool",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total gateway requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "yieldpool",
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Total gateway errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "yieldpool",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for gateway handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "yieldpool",
				Subsystem: "gateway",
				Name:      "throttles_total",
				Help:      "Count of gateway requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a gateway request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// PoolMetrics captures the health of the capital ledger and the operations
// executed against it.
type PoolMetrics struct {
	operations      *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	discrepancies   prometheus.Counter
	totalShares     prometheus.Gauge
	managedAssets   prometheus.Gauge
	capitalDeployed prometheus.Gauge
}

// Pool returns the singleton pool metrics registry.
func Pool() *PoolMetrics {
	poolMetricsOnce.Do(func() {
		poolRegistry = &PoolMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "yieldpool",
				Subsystem: "node",
				Name:      "operations_total",
				Help:      "Count of executed operations segmented by operation and outcome class.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "yieldpool",
				Subsystem: "node",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for executed operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			discrepancies: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "yieldpool",
				Subsystem: "pool",
				Name:      "repayment_discrepancies_total",
				Help:      "Repayments whose principal exceeded the tracked deployed capital.",
			}),
			totalShares: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "yieldpool",
				Subsystem: "pool",
				Name:      "total_shares",
				Help:      "Outstanding pool shares.",
			}),
			managedAssets: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "yieldpool",
				Subsystem: "pool",
				Name:      "managed_assets",
				Help:      "On-hand balance plus deployed capital.",
			}),
			capitalDeployed: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "yieldpool",
				Subsystem: "pool",
				Name:      "capital_deployed",
				Help:      "Capital currently out with the lending kernel.",
			}),
		}
		prometheus.MustRegister(
			poolRegistry.operations,
			poolRegistry.latency,
			poolRegistry.discrepancies,
			poolRegistry.totalShares,
			poolRegistry.managedAssets,
			poolRegistry.capitalDeployed,
		)
	})
	return poolRegistry
}

// ObserveOperation records an operation outcome. outcome is "success" or the
// error class reported by the caller.
func (m *PoolMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = "unknown"
	}
	if outcome == "" {
		outcome = "success"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDiscrepancy counts a clamped repayment.
func (m *PoolMetrics) RecordDiscrepancy() {
	if m == nil {
		return
	}
	m.discrepancies.Inc()
}

// SetPoolState publishes the ledger totals.
func (m *PoolMetrics) SetPoolState(totalShares, managedAssets, capitalDeployed *big.Int) {
	if m == nil {
		return
	}
	m.totalShares.Set(bigToFloat(totalShares))
	m.managedAssets.Set(bigToFloat(managedAssets))
	m.capitalDeployed.Set(bigToFloat(capitalDeployed))
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
