// Package worker выполняет запросы на запуск шагов pipeline из RabbitMQ.
//
// # Обзор
//
// Worker потребляет сообщения workflow.requested из очереди
// workflows.requested и для каждого вызывает Orchestrator.Run.
// Несколько экземпляров могут читать одну очередь.
//
//	w := worker.New(worker.Config{
//	    Runner:    app.Orchestrator,
//	    Recoverer: app.Watcher,
//	    Conn:      app.MQ,
//	    Logger:    logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Подтверждение
//
//   - Тип сообщения, payload, номер шага и параметры проверяются до запуска.
//     Некорректное сообщение nack'ается без requeue и попадает в dlq.workflows.
//   - Корректный запрос подтверждается всегда: результат workflow,
//     включая ошибку запуска контейнера, уже записан в project и task.
//
// # Recovery
//
// Если задан Recoverer, worker сразу и затем с интервалом RecoverInterval
// подхватывает running tasks, за контейнерами которых никто не следит
// (например, после рестарта процесса).
package worker
