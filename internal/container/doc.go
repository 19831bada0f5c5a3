// Package container — обёртка над CLI container runtime (docker).
//
// # Обзор
//
// Пакет не реализует runtime, а строит вызовы бинарника и разбирает
// их результат. Все ожидаемые ошибки (ненулевой exit code, отсутствие
// бинарника) возвращаются как Result{Success: false, Error: ...},
// а не через panic.
//
// # Ключевые компоненты
//
// ## Runner
//
// Интерфейс запуска процесса. Три режима:
//   - Run — синхронный, накапливает stdout/stderr (images, info, logs)
//   - Start — detached запуск (run -d), первая строка stdout — id контейнера
//   - Stream — построчная передача вывода (logs -f в файл)
//
// CLI — реализация через os/exec. PATH дополняется стандартными
// каталогами установки docker, потому что приложение, запущенное
// не из терминала, часто получает урезанный PATH.
//
// MockRunner — реализация для тестов, записывает вызовы.
//
// ## Launcher
//
// Строит argv для docker run в фиксированном порядке (BuildArgs),
// пишет маркеры сессии в лог-файл и после успешного старта запускает
// фоновый logs -f. Фоновые процессы учитываются в Tracker и
// останавливаются через StopFollow/Close.
//
// ## RuntimeChecker
//
// Проверки окружения: установлен ли docker, запущен ли daemon.
package container
