// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go         — Handler с DI (хранилища, orchestrator, runtime, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects (request/response)
//   - project_handler.go — обработчики для /projects
//   - task_handler.go    — обработчики для /tasks
//   - run_handler.go     — запуск шага: POST /steps/{step}/runs
//   - runtime_handler.go — /images, /runtime, /healthz
//
// Все обработчики зависят от интерфейсов, поэтому в тестах
// подставляются in-memory badger и фейки runtime.
package api
