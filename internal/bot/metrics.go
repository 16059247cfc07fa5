package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics структура для метрик Prometheus
type Metrics struct {
	UpdatesTotal         *prometheus.CounterVec
	StaleEvents          prometheus.Counter
	RateLimited          prometheus.Counter
	ErrorsTotal          prometheus.Counter
	UpdateProcessingTime prometheus.Histogram
	OrdersCreated        *prometheus.CounterVec
	FinalizeFailures     *prometheus.CounterVec
	StatusChanges        *prometheus.CounterVec
	QueueDepth           prometheus.Gauge
}

// NewMetrics регистрирует метрики в registerer; nil означает глобальный реестр.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		UpdatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_bot_updates_total",
			Help: "Processed updates by kind",
		}, []string{"kind"}),

		StaleEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_stale_events_total",
			Help: "Duplicate or outdated events acknowledged without effect",
		}),

		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_rate_limited_total",
			Help: "Updates dropped by the per-user rate limit",
		}),

		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_errors_total",
			Help: "Update handling failures and recovered panics",
		}),

		UpdateProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "telegram_bot_update_processing_time_seconds",
			Help:    "Time spent processing updates",
			Buckets: prometheus.DefBuckets,
		}),

		OrdersCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_bot_orders_created_total",
			Help: "Total number of orders written to the ledger",
		}, []string{"product"}),

		FinalizeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_bot_finalize_failures_total",
			Help: "Finalize attempts rejected by reason",
		}, []string{"reason"}),

		StatusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_bot_status_changes_total",
			Help: "Order status changes made by the administrator",
		}, []string{"status"}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "telegram_bot_dispatch_queue_depth",
			Help: "Updates waiting for a dispatcher worker",
		}),
	}
}
