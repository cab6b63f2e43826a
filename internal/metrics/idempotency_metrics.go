package metrics

import "github.com/prometheus/client_golang/prometheus"

// Исходы проверки idempotency-key (значения лейбла result).
const (
	IdempotencyResultNew        = "new"
	IdempotencyResultReplayed   = "replayed"
	IdempotencyResultMismatch   = "mismatch"
	IdempotencyResultInProgress = "in_progress"
	IdempotencyResultError      = "error"
)

// IdempotencyMetrics содержит метрики idempotency-ключей и их очистки.
type IdempotencyMetrics struct {
	requests *prometheus.CounterVec

	cleanupRuns        *prometheus.CounterVec
	cleanupDeleted     prometheus.Counter
	cleanupLastDeleted prometheus.Gauge
}

// NewIdempotencyMetrics создаёт метрики в DefaultRegisterer.
func NewIdempotencyMetrics() *IdempotencyMetrics {
	return NewIdempotencyMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewIdempotencyMetricsWithRegisterer создаёт метрики в указанном реестре.
func NewIdempotencyMetricsWithRegisterer(registerer prometheus.Registerer) *IdempotencyMetrics {
	return &IdempotencyMetrics{
		requests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_idempotency_requests_total",
			Help: "Total number of requests carrying an idempotency key grouped by result.",
		}, []string{"result"}),
		cleanupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result.",
		}, []string{"result"}),
		cleanupDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency records.",
		}),
		cleanupLastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "pos_idempotency_cleanup_last_deleted",
			Help: "Number of deleted records during the last cleanup run.",
		}),
	}
}

// RecordRequest учитывает исход проверки ключа.
func (m *IdempotencyMetrics) RecordRequest(result string) {
	m.requests.WithLabelValues(result).Inc()
}

// RecordCleanupRun учитывает запуск очистки: "ok" или "error".
func (m *IdempotencyMetrics) RecordCleanupRun(result string) {
	m.cleanupRuns.WithLabelValues(result).Inc()
}

// RecordCleanupDeleted увеличивает счётчик удалённых записей.
func (m *IdempotencyMetrics) RecordCleanupDeleted(deleted int) {
	m.cleanupDeleted.Add(float64(deleted))
}

// SetLastCleanupDeleted фиксирует число удалённых записей за последний запуск.
func (m *IdempotencyMetrics) SetLastCleanupDeleted(deleted int) {
	m.cleanupLastDeleted.Set(float64(deleted))
}
