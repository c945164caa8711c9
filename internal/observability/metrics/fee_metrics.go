package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeFailure  = "failure"

	CacheHit  = "hit"
	CacheMiss = "miss"
)

// FeeMetrics captures fee calculation health signals.
type FeeMetrics struct {
	calculations        *prometheus.CounterVec
	calculationDuration *prometheus.HistogramVec
	orphanedPayments    prometheus.Counter
	summaryCache        *prometheus.CounterVec
	classSyncStudents   *prometheus.CounterVec
}

var (
	feeMetricsOnce sync.Once
	feeMetrics     *FeeMetrics
)

// FeeWithConfig returns the singleton fee metrics registry using config labels.
func FeeWithConfig(cfg Config) *FeeMetrics {
	feeMetricsOnce.Do(func() {
		feeMetrics = newFeeMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return feeMetrics
}

func newFeeMetrics(registerer prometheus.Registerer, cfg Config) *FeeMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	calculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "feeledger_fee_calculations_total",
		Help:        "Fee calculations by operation and outcome.",
		ConstLabels: constLabels,
	}, []string{"operation", "outcome"})
	calculationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "feeledger_fee_calculation_duration_seconds",
		Help:        "Fee calculation latency including record fetches.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"operation"})
	orphanedPayments := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "feeledger_orphaned_payments_total",
		Help:        "Payments that could not be attributed to any fee component.",
		ConstLabels: constLabels,
	})
	summaryCache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "feeledger_summary_cache_total",
		Help:        "Fee summary cache lookups by result.",
		ConstLabels: constLabels,
	}, []string{"result"})
	classSyncStudents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "feeledger_class_sync_students_total",
		Help:        "Students recomputed by class fee sync, by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})

	registerer.MustRegister(
		calculations,
		calculationDuration,
		orphanedPayments,
		summaryCache,
		classSyncStudents,
	)

	return &FeeMetrics{
		calculations:        calculations,
		calculationDuration: calculationDuration,
		orphanedPayments:    orphanedPayments,
		summaryCache:        summaryCache,
		classSyncStudents:   classSyncStudents,
	}
}

// ObserveCalculation records the outcome and latency of a facade operation.
func (m *FeeMetrics) ObserveCalculation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.calculations.WithLabelValues(operation, outcome).Inc()
	m.calculationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// AddOrphanedPayments counts payments left unmatched by a calculation.
func (m *FeeMetrics) AddOrphanedPayments(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.orphanedPayments.Add(float64(count))
}

// IncSummaryCache counts a summary cache lookup.
func (m *FeeMetrics) IncSummaryCache(result string) {
	if m == nil {
		return
	}
	m.summaryCache.WithLabelValues(result).Inc()
}

// IncClassSyncStudent counts a student recomputed by class sync.
func (m *FeeMetrics) IncClassSyncStudent(outcome string) {
	if m == nil {
		return
	}
	m.classSyncStudents.WithLabelValues(outcome).Inc()
}

func constLabelsFor(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "feeledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}
