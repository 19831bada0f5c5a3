// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - workflow.requested — запрос на запуск шага pipeline
//   - task.launched      — контейнер шага запущен
//   - task.completed     — task получил финальный статус
//
// Exchanges:
//   - novoflow.workflows — запросы на запуск
//   - novoflow.tasks     — события tasks
//   - novoflow.dlq       — dead letter queue
package mq
