// Package orchestrator проводит запуск шага pipeline от записи в хранилище
// до финального статуса.
//
// Orchestrator.Run:
//   - создаёт Project и Task со статусом running
//   - готовит <output>/<taskID>/output и <output>/<taskID>/log
//   - запускает контейнер шага
//   - при ошибке переводит Task и Project в failed и удаляет контейнер
//
// Любая ошибка хранилища или файловой системы компенсируется: уже созданные
// записи помечаются failed, вызывающий получает Result{Success: false}.
//
// Watcher ждёт завершения запущенного контейнера (docker wait) и записывает
// финальный статус: exit 0 — success, иначе failed с exitCode.
package orchestrator
