// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики API и клиентского store
//
// API экспортирует метрики на /metrics endpoint.
package telemetry
