package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Novoflow/internal/app"
	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/orchestrator"
	"github.com/shaiso/Novoflow/internal/repo"
)

// NewTaskCmd создаёт группу команд для управления tasks.
func NewTaskCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(appFn, outputFn),
		newTaskShowCmd(appFn, outputFn),
		newTaskDeleteCmd(appFn, outputFn),
		newTaskWaitCmd(appFn, outputFn),
	)

	return cmd
}

func newTaskListCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var projectID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := repo.TaskFilter{Status: domain.ParseStatus(status), Limit: limit}
			if status != "" && !filter.Status.IsValid() {
				return fmt.Errorf("invalid status %q", status)
			}
			if projectID != "" {
				id, err := uuid.Parse(projectID)
				if err != nil {
					return fmt.Errorf("invalid project id: %w", err)
				}
				filter.ProjectID = &id
			}

			a, err := appFn(cmd.Context())
			if err != nil {
				return err
			}

			tasks, err := a.Stores.Tasks.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			printTasks(outputFn(), tasks, tasks)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Filter by project ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, running, success, failed)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newTaskShowCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show TASK_ID",
		Short: "Show task details",
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
			if out.JSONMode() {
				out.JSON(task)
				return nil
			}

			rows := [][]string{
				{"ID", task.ID.String()},
				{"PROJECT", task.ProjectID.String()},
				{"STEP", task.Step},
				{"STATUS", task.Status.String()},
				{"CREATED", formatTime(task.CreatedAt)},
				{"UPDATED", formatTime(task.UpdatedAt)},
			}
			for _, key := range []string{
				domain.ParamContainerID,
				domain.ParamContainerName,
				domain.ParamInputPath,
				domain.ParamOutputPath,
				domain.ParamLogFile,
				domain.ParamExitCode,
				domain.ParamError,
			} {
				if v := task.StringParam(key); v != "" {
					rows = append(rows, []string{key, v})
				}
			}
			out.Table([]string{"FIELD", "VALUE"}, rows)
			return nil
		},
	}
}

func newTaskDeleteCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete TASK_ID",
		Short: "Delete a task record (the container is not touched)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id: %w", err)
			}

			a, err := appFn(cmd.Context())
			if err != nil {
				return err
			}

			if err := a.Stores.Tasks.Delete(cmd.Context(), id); err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Task deleted: %s", id))
			return nil
		},
	}
}

func newTaskWaitCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "wait TASK_ID",
		Short: "Wait until the task container finishes and record its status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFn(cmd.Context())
			if err != nil {
				return err
			}
			if a.Watcher == nil {
				return fmt.Errorf("watching is disabled (workflow.watch=false or attached mode)")
			}

			out := outputFn()
			task, err := waitTask(cmd.Context(), a, args[0], out)
			if err != nil {
				return err
			}

			printTasks(out, []domain.Task{*task}, task)
			return nil
		},
	}
}

// getTask загружает task по строковому id.
func getTask(ctx context.Context, a *app.App, idStr string) (*domain.Task, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid task id: %w", err)
	}
	task, err := a.Stores.Tasks.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", id, err)
	}
	return task, nil
}

// waitTask ждёт, пока Watcher запишет финальный статус task.
func waitTask(ctx context.Context, a *app.App, idStr string, out *Output) (*domain.Task, error) {
	task, err := getTask(ctx, a, idStr)
	if err != nil {
		return nil, err
	}
	if task.IsFinished() {
		return task, nil
	}
	if task.ContainerID() == "" {
		return nil, orchestrator.ErrNoContainer
	}

	a.Watcher.Watch(task)
	out.Info("Waiting for container %s ...", task.ContainerID())

	select {
	case <-a.Watcher.Done(task.ID):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return a.Stores.Tasks.GetByID(ctx, task.ID)
}

// printTasks выводит tasks таблицей или jsonData в режиме --json.
func printTasks(out *Output, tasks []domain.Task, jsonData any) {
	headers := []string{"ID", "PROJECT_ID", "STEP", "STATUS", "CONTAINER", "CREATED"}
	rows := make([][]string, len(tasks))
	for i, t := range tasks {
		rows[i] = []string{
			t.ID.String(),
			t.ProjectID.String(),
			t.Step,
			t.Status.String(),
			orDash(t.StringParam(domain.ParamContainerName)),
			formatTime(t.CreatedAt),
		}
	}
	out.Print(headers, rows, jsonData)
}
