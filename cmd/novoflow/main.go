// Novoflow CLI — локальный запуск шагов pipeline в контейнерах.
//
// Использование:
//
//	novoflow [--config FILE] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	run        Запуск шага
//	images     Образы каталога
//	runtime    Проверка docker
//	project    Управление projects
//	task       Управление tasks
//	container  Остановка и логи контейнеров
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Novoflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	root := cli.NewRoot(version, cli.Options{})
	err := root.ExecuteContext(ctx)
	root.Close()
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
