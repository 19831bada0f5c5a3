// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// Все бинарники используют единый формат логирования,
// novoflow-api и novoflow-worker экспортируют метрики на /metrics.
package telemetry
