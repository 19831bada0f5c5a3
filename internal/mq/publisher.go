package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeWorkflowRequested MessageType = "workflow.requested"
	MessageTypeTaskLaunched      MessageType = "task.launched"
	MessageTypeTaskCompleted     MessageType = "task.completed"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// WorkflowRequestedPayload — запрос на запуск шага pipeline.
type WorkflowRequestedPayload struct {
	Step        string            `json:"step"`
	ProjectName string            `json:"project_name"`
	InputPath   string            `json:"input_path"`
	OutputPath  string            `json:"output_path"`
	UID         string            `json:"uid,omitempty"`
	GID         string            `json:"gid,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
}

// TaskEventPayload — payload для событий task.launched и task.completed.
type TaskEventPayload struct {
	TaskID      uuid.UUID `json:"task_id"`
	ProjectID   uuid.UUID `json:"project_id"`
	Step        string    `json:"step"`
	Status      string    `json:"status"` // running, success или failed
	ContainerID string    `json:"container_id,omitempty"`
	ExitCode    *int      `json:"exit_code,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishWorkflowRequested ставит запуск шага в очередь.
// Потребитель: Worker.
func (p *Publisher) PublishWorkflowRequested(ctx context.Context, payload WorkflowRequestedPayload) error {
	return p.PublishJSON(ctx, ExchangeWorkflows, RoutingKeyRequested, MessageTypeWorkflowRequested, payload)
}

// PublishTaskLaunched публикует событие о запущенном контейнере.
func (p *Publisher) PublishTaskLaunched(ctx context.Context, payload TaskEventPayload) error {
	return p.PublishJSON(ctx, ExchangeTasks, RoutingKeyLaunched, MessageTypeTaskLaunched, payload)
}

// PublishTaskCompleted публикует событие о завершённом task.
func (p *Publisher) PublishTaskCompleted(ctx context.Context, payload TaskEventPayload) error {
	return p.PublishJSON(ctx, ExchangeTasks, RoutingKeyCompleted, MessageTypeTaskCompleted, payload)
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	return p.Publish(ctx, exchange, routingKey, msg)
}
