package worker

import "errors"

// Ошибки воркера.
var (
	// ErrUnexpectedMessage — в очереди сообщение другого типа.
	ErrUnexpectedMessage = errors.New("unexpected message type")

	// ErrInvalidRequest — запрос не прошёл разбор или валидацию.
	ErrInvalidRequest = errors.New("invalid workflow request")

	// ErrNoRunner — не задан WorkflowRunner.
	ErrNoRunner = errors.New("workflow runner is not configured")

	// ErrNoConnection — не задано подключение к RabbitMQ.
	ErrNoConnection = errors.New("mq connection is not configured")
)
