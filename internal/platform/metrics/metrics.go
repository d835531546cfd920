package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
)

const namespace = "salespoint"

// InventoryMetrics contains reconciliation and stock management metrics.
// A nil *InventoryMetrics is valid and records nothing.
type InventoryMetrics struct {
	LineOutcomes          *prometheus.CounterVec
	Reconciliations       *prometheus.CounterVec
	ReconcileDuration     *prometheus.HistogramVec
	Restocks              prometheus.Counter
	UniquenessConflicts   prometheus.Counter
	ConsistencyViolations prometheus.Counter
}

// HTTPMetrics contains HTTP-related Prometheus metrics
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	f := promauto.With(reg)
	return &InventoryMetrics{
		LineOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "order_line_outcomes_total",
			Help:      "Order lines reconciled on completion, by outcome.",
		}, []string{"outcome"}),
		Reconciliations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "reconciliations_total",
			Help:      "Reconciliation passes by lifecycle event and result.",
		}, []string{"event", "result"}),
		ReconcileDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of one reconciliation pass.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
		Restocks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "restocks_total",
			Help:      "Stock increases from external restocks and cancelled completed orders.",
		}),
		UniquenessConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "uniqueness_conflicts_total",
			Help:      "Inventory items rejected by the unique-or-batch invariant.",
		}),
		ConsistencyViolations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "consistency_violations_total",
			Help:      "Cancelled completed orders whose products had no inventory item left.",
		}),
	}
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	f := promauto.With(reg)
	return &HTTPMetrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

func (m *InventoryMetrics) ObserveReport(report domain.CompletionReport) {
	if m == nil {
		return
	}
	for _, c := range report.Completions {
		m.LineOutcomes.WithLabelValues(string(c.Outcome)).Inc()
	}
}

func (m *InventoryMetrics) ObserveReconciliation(event domain.LifecycleEventKind, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Reconciliations.WithLabelValues(string(event), result).Inc()
	m.ReconcileDuration.WithLabelValues(string(event)).Observe(took.Seconds())
}

func (m *InventoryMetrics) IncRestocks() {
	if m != nil {
		m.Restocks.Inc()
	}
}

func (m *InventoryMetrics) IncUniquenessConflicts() {
	if m != nil {
		m.UniquenessConflicts.Inc()
	}
}

func (m *InventoryMetrics) IncConsistencyViolations() {
	if m != nil {
		m.ConsistencyViolations.Inc()
	}
}

// RecordHTTPRequest records an HTTP request metric
func (m *HTTPMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
