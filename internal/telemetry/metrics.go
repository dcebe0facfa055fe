package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики API.
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptsched_api_http_requests_total",
		Help: "Total HTTP requests handled by scriptsched_api",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scriptsched_api_http_request_duration_seconds",
		Help:    "HTTP request latency of scriptsched_api",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptsched_api_events_published_total",
		Help: "Schedule change events published to RabbitMQ",
	}, []string{"type", "outcome"})
)

// Метрики клиентского store.
var (
	// StoreFetches — результаты FetchSchedules: ok, error, stale.
	StoreFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptsched_store_fetches_total",
		Help: "Schedule list fetches by outcome",
	}, []string{"outcome"})

	// StoreSchedules — размер кэша store. Передаётся в store.New через
	// store.WithSchedulesGauge; в процессе CLI ровно один такой store.
	StoreSchedules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scriptsched_store_schedules",
		Help: "Number of schedules currently cached by the store",
	})
)
