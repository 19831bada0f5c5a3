// Package steps запускает шаги pipeline в контейнерах.
//
// # Обзор
//
// Все пять шагов устроены одинаково, поэтому вместо пяти копий есть один
// параметризованный Executor на каждый domain.Step. Executor:
//   - находит образ шага в images.Catalog (нет образа — ошибка конфигурации)
//   - генерирует уникальное имя контейнера
//   - монтирует input в /app/input и output в /app/output
//   - передаёт PROJECT_NAME и переменные из конфигурации шага
//   - пишет лог запуска в <LogDir>/step<N>_<taskId>_<date>_<time>.log
//
// # Имена контейнеров
//
//	step<N>-<имя проекта, [^a-zA-Z0-9] → '-'>-<миллисекунды>
//
// NameGenerator гарантирует строго возрастающую временную часть в пределах
// процесса, даже если два запуска попали в одну миллисекунду.
//
// # Шаблоны
//
// Значения env и command из конфигурации шага — Go templates:
//
//	steps:
//	  "2":
//	    env:
//	      RUN_ID: "{{ .TaskID }}"
//	      LABEL: "{{ .Project | lower }}"
//
// # Registry
//
//	registry := steps.NewRegistry(steps.Config{Catalog: catalog, Launcher: launcher})
//	exec, err := registry.Get(domain.Step1)
//	res := exec.Run(ctx, steps.Params{...})
package steps
