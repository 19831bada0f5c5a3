// Package repo хранит projects и tasks.
//
// Две реализации одних и тех же интерфейсов (ProjectStore, TaskStore):
//   - ProjectRepo / TaskRepo — PostgreSQL через pgx, схема в schema.sql
//   - BadgerStore — встроенная BadgerDB, не требует внешних сервисов
//
// Удаление project каскадно удаляет его tasks. Отсутствующая запись
// возвращает ErrNotFound.
package repo
