package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Novoflow/internal/container"
	"github.com/shaiso/Novoflow/internal/domain"
)

// NewContainerCmd создаёт группу команд для контейнеров tasks.
func NewContainerCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "container",
		Short: "Control task containers",
	}

	cmd.AddCommand(
		newContainerStopCmd(appFn, outputFn),
		newContainerLogsCmd(appFn, outputFn),
	)

	return cmd
}

func newContainerStopCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stop TASK_ID",
		Short: "Stop the task container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFn(cmd.Context())
			if err != nil {
				return err
			}

			task, err := getTask(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}

			if a.Watcher != nil {
				if err := a.Watcher.Cancel(cmd.Context(), task.ID); err != nil {
					return err
				}
			} else {
				name := task.StringParam(domain.ParamContainerName)
				if task.IsFinished() || name == "" {
					return fmt.Errorf("task %s has no running container", task.ID)
				}
				if err := a.Launcher.Stop(cmd.Context(), name); err != nil {
					return err
				}
			}

			outputFn().Success(fmt.Sprintf("Container stopped: %s", orDash(task.StringParam(domain.ParamContainerName))))
			return nil
		},
	}
}

func newContainerLogsCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var fromRuntime bool

	cmd := &cobra.Command{
		Use:   "logs TASK_ID",
		Short: "Print the task log file (or docker logs when the file has no follow output)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFn(cmd.Context())
			if err != nil {
				return err
			}

			task, err := getTask(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			out := outputFn()

			var (
				file    string
				hasFile bool
			)
			if path := task.StringParam(domain.ParamLogFile); path != "" && !fromRuntime {
				data, err := os.ReadFile(path)
				switch {
				case err == nil:
					file, hasFile = string(data), true
				case !errors.Is(err, fs.ErrNotExist):
					return err
				}
			}

			if hasFile && container.HasFollowSession(file) {
				out.Text(file)
				return nil
			}

			// Без logs -f в файле только сессия старта: follower завершился вместе с процессом run
			name := task.StringParam(domain.ParamContainerName)
			if name == "" {
				if hasFile {
					out.Text(file)
					return nil
				}
				return fmt.Errorf("task %s has no logs", task.ID)
			}

			logs, err := a.Launcher.Logs(cmd.Context(), name)
			if err != nil {
				if hasFile {
					out.Text(file)
					return nil
				}
				return err
			}
			out.Text(logs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromRuntime, "runtime", false, "Read logs from the container runtime instead of the log file")

	return cmd
}
