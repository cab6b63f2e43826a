package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Причины отказа при записи продажи (значения лейбла reason).
const (
	SaleFailureValidation        = "validation"
	SaleFailureProductNotFound   = "product_not_found"
	SaleFailureInsufficientStock = "insufficient_stock"
	SaleFailureStorage           = "storage"
)

// SalesMetrics содержит метрики транзакций продаж.
type SalesMetrics struct {
	salesRecorded prometheus.Counter
	salesFailed   *prometheus.CounterVec

	saleDuration prometheus.Histogram
	saleItems    prometheus.Histogram

	unitsSold prometheus.Counter
	revenue   prometheus.Counter

	inFlight prometheus.Gauge
}

// NewSalesMetrics создаёт метрики продаж в DefaultRegisterer.
func NewSalesMetrics() *SalesMetrics {
	return NewSalesMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewSalesMetricsWithRegisterer создаёт метрики продаж в указанном реестре.
func NewSalesMetricsWithRegisterer(registerer prometheus.Registerer) *SalesMetrics {
	return &SalesMetrics{
		salesRecorded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_sales_recorded_total",
			Help: "Total number of committed sales",
		}),
		salesFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_sales_failed_total",
			Help: "Total number of rejected or failed sales by reason",
		}, []string{"reason"}),
		saleDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "pos_sale_duration_seconds",
			Help:    "Duration of the sale recording transaction in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		saleItems: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "pos_sale_items",
			Help:    "Number of line items per committed sale",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		unitsSold: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_stock_units_sold_total",
			Help: "Total number of product units removed from stock by sales",
		}),
		revenue: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_sales_revenue_total",
			Help: "Sum of committed sale totals",
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "pos_sales_in_flight",
			Help: "Number of sale transactions currently executing",
		}),
	}
}

// RecordSaleStarted отмечает начало транзакции продажи.
func (m *SalesMetrics) RecordSaleStarted() {
	m.inFlight.Inc()
}

// RecordSaleFinished снимает продажу из in-flight и пишет её длительность.
func (m *SalesMetrics) RecordSaleFinished(duration time.Duration) {
	m.inFlight.Dec()
	m.saleDuration.Observe(duration.Seconds())
}

// RecordSaleCommitted учитывает успешную продажу.
func (m *SalesMetrics) RecordSaleCommitted(items, units int, total decimal.Decimal) {
	m.salesRecorded.Inc()
	m.saleItems.Observe(float64(items))
	m.unitsSold.Add(float64(units))
	m.revenue.Add(total.InexactFloat64())
}

// RecordSaleFailed учитывает отказ с указанной причиной.
func (m *SalesMetrics) RecordSaleFailed(reason string) {
	m.salesFailed.WithLabelValues(reason).Inc()
}
