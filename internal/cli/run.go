package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/Novoflow/internal/app"
	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/mq"
	"github.com/shaiso/Novoflow/internal/orchestrator"
)

// ErrMQNotConfigured — --queue без mq.url.
var ErrMQNotConfigured = errors.New("mq is not configured (set mq.url or RABBITMQ_URL)")

// NewRunCmd создаёт команду запуска шага pipeline.
func NewRunCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var (
		stepFlag string
		params   orchestrator.RunParams
		env      map[string]string
		wait     bool
		queue    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline step in a container",
		Example: `  novoflow run --step 1 --name "Demo Run!" --input /data/in --output /data/out
  novoflow run --step 2 --name demo --input /in --output /out --env LABEL=x --wait`,
		RunE: func(cmd *cobra.Command, args []string) error {
			step, err := domain.ParseStep(stepFlag)
			if err != nil {
				return err
			}
			params.Env = env
			if err := orchestrator.Validate(step, params); err != nil {
				return err
			}

			a, err := appFn(cmd.Context())
			if err != nil {
				return err
			}
			out := outputFn()

			if queue {
				return enqueueRun(cmd.Context(), a, out, step, params)
			}

			res := a.Orchestrator.Run(cmd.Context(), step, params)
			if !res.Success {
				if out.JSONMode() {
					out.JSON(res)
				}
				return fmt.Errorf("workflow failed: %s", res.Error)
			}

			out.Success(fmt.Sprintf("Container started: %s", orDash(res.ContainerID)))
			printTasks(out, []domain.Task{*res.Task}, res)

			if !wait || res.ContainerID == "" {
				return nil
			}
			if a.Watcher == nil {
				return errors.New("--wait requires workflow.watch and detached containers")
			}

			task, err := waitTask(cmd.Context(), a, res.Task.ID.String(), out)
			if err != nil {
				return err
			}
			if task.Status != domain.StatusSuccess {
				return fmt.Errorf("task %s: %s", task.Status, task.StringParam(domain.ParamError))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stepFlag, "step", "", "Pipeline step: 1..5 or step1..step5")
	cmd.Flags().StringVar(&params.ProjectName, "name", "", "Project name")
	cmd.Flags().StringVar(&params.InputPath, "input", "", "Input directory (mounted at /app/input)")
	cmd.Flags().StringVar(&params.OutputPath, "output", "", "Output base directory")
	cmd.Flags().StringVar(&params.UID, "uid", "", "Container user id (default from config)")
	cmd.Flags().StringVar(&params.GID, "gid", "", "Container group id (default from config)")
	cmd.Flags().StringToStringVar(&env, "env", nil, "Extra environment as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the container to finish (without it the log follower stops when the command exits)")
	cmd.Flags().BoolVar(&queue, "queue", false, "Publish the request to RabbitMQ instead of running locally")
	cmd.MarkFlagRequired("step")

	return cmd
}

// enqueueRun публикует workflow.requested для novoflow-worker.
func enqueueRun(ctx context.Context, a *app.App, out *Output, step domain.Step, p orchestrator.RunParams) error {
	if a.Publisher == nil {
		return ErrMQNotConfigured
	}

	payload := mq.WorkflowRequestedPayload{
		Step:        step.Tag(),
		ProjectName: p.ProjectName,
		InputPath:   p.InputPath,
		OutputPath:  p.OutputPath,
		UID:         p.UID,
		GID:         p.GID,
		Env:         p.Env,
	}
	if err := a.Publisher.PublishWorkflowRequested(ctx, payload); err != nil {
		return err
	}

	if out.JSONMode() {
		out.JSON(payload)
	}
	out.Success(fmt.Sprintf("Workflow request queued: %s %q", step.Tag(), p.ProjectName))
	return nil
}
