package worker

import (
	"context"
	"fmt"

	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/mq"
	"github.com/shaiso/Novoflow/internal/orchestrator"
)

// handleWorkflowRequested обрабатывает запрос из очереди workflows.requested.
//
// Ошибка возвращается только для некорректного сообщения (→ DLQ).
// Сбой самого workflow уже записан в статусы project/task.
func (w *Worker) handleWorkflowRequested(ctx context.Context, delivery *mq.Delivery) error {
	step, params, err := parseRequest(&delivery.Message)
	if err != nil {
		w.logger.Warn("rejecting workflow request",
			"message_id", delivery.Message.ID,
			"error", err,
		)
		return err
	}

	logger := w.logger.With(
		"message_id", delivery.Message.ID,
		"step", step.String(),
		"project", params.ProjectName,
	)
	logger.Debug("received workflow.requested")

	res := w.runner.Run(ctx, step, params)
	if !res.Success {
		logger.Warn("workflow failed", "error", res.Error)
		return nil
	}

	logger.Info("workflow launched",
		"task_id", res.Task.ID,
		"container_id", res.ContainerID,
	)
	return nil
}

// parseRequest разбирает и проверяет workflow.requested.
func parseRequest(msg *mq.Message) (domain.Step, orchestrator.RunParams, error) {
	if msg.Type != mq.MessageTypeWorkflowRequested {
		return 0, orchestrator.RunParams{}, fmt.Errorf("%w: %q", ErrUnexpectedMessage, msg.Type)
	}

	payload, err := mq.ParsePayload[mq.WorkflowRequestedPayload](msg)
	if err != nil {
		return 0, orchestrator.RunParams{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	step, err := domain.ParseStep(payload.Step)
	if err != nil {
		return 0, orchestrator.RunParams{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	params := orchestrator.RunParams{
		ProjectName: payload.ProjectName,
		InputPath:   payload.InputPath,
		OutputPath:  payload.OutputPath,
		UID:         payload.UID,
		GID:         payload.GID,
		Env:         payload.Env,
	}
	if err := orchestrator.Validate(step, params); err != nil {
		return 0, orchestrator.RunParams{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return step, params, nil
}
