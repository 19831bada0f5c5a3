// Package cli реализует инструмент командной строки Novoflow.
//
// # Обзор
//
// CLI работает локально: собирает app.App из конфигурации
// (по умолчанию badger в ~/.novoflow/data) и вызывает Orchestrator,
// Watcher, images.Manager и хранилища напрямую. С флагом run --queue
// запрос публикуется в RabbitMQ для novoflow-worker.
//
// # Ключевые компоненты
//
// ## Root
//
// Корневая команда с PersistentFlags --config и --json. App создаётся
// лениво при первом обращении команды и закрывается через Root.Close:
//
//	root := cli.NewRoot(version, cli.Options{})
//	err := root.ExecuteContext(ctx)
//	root.Close()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения и прогресс — в stderr.
// Это позволяет использовать pipe: novoflow task list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - run: запуск шага (--wait, --queue)
//   - images: list, check, pull
//   - runtime: check
//   - project: list, show, delete
//   - task: list, show, delete, wait
//   - container: stop, logs
//
// Каждая группа создаётся через фабричную функцию (NewRunCmd и т.д.),
// принимающую appFn и outputFn — замыкания для ленивого создания
// App и Output после парсинга PersistentFlags.
package cli
