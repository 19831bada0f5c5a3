package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Novoflow/internal/telemetry"
)

// Исходы обработки сообщения (label "outcome" в MQDeliveries).
const (
	OutcomeAck        = "ack"
	OutcomeRequeue    = "requeue"
	OutcomeDeadLetter = "dead_letter"
)

// Handler обрабатывает сообщение. Ошибка — nack по политике Consumer.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	Message Message

	// Redelivered — сообщение уже доставлялось и было возвращено в очередь.
	Redelivered bool
}

// Consumer читает очередь и передаёт сообщения в Handler.
//
// Сообщения подтверждаются вручную: ack после успешного Handler,
// nack при ошибке. Тело, которое не разбирается как Message,
// всегда уходит в DLQ.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int
	requeue  bool

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue   string
	Handler Handler

	// Prefetch — неподтверждённых сообщений на consumer (default: 1).
	Prefetch int

	// DeadLetterOnError — ошибка Handler отправляет сообщение в DLQ
	// вместо возврата в очередь.
	DeadLetterOnError bool

	// Logger
	Logger *slog.Logger
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
		requeue:  !cfg.DeadLetterOnError,
	}
}

// Start читает очередь до отмены ctx, закрытия соединения или отказа
// переподключения. Блокирует.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started")
			if err := c.drain(ctx, deliveries); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed")
		}

		if err := c.awaitReconnect(ctx); err != nil {
			return err
		}
		c.logger.Info("reconnected, resubscribing")
	}
}

// awaitReconnect ждёт нового канала.
func (c *Consumer) awaitReconnect(ctx context.Context) error {
	if st := c.conn.Status(); st.State == StateFailed {
		return fmt.Errorf("%w: %s", ErrNoChannel, st.LastError)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.Done():
		return ErrConnectionClosed
	case <-c.conn.Reconnected():
		return nil
	}
}

// subscribe выставляет prefetch и начинает Consume на текущем канале.
func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.settle(raw, c.handle(ctx, raw.Body, raw.Redelivered))
		}
	}
}

// handle разбирает тело и вызывает Handler. Возвращает исход.
func (c *Consumer) handle(ctx context.Context, body []byte, redelivered bool) (outcome string) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message", "error", err, "body", string(body))
		return OutcomeDeadLetter
	}

	logger := c.logger.With("message_id", msg.ID, "type", msg.Type)
	logger.Debug("received message", "redelivered", redelivered)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panic", "panic", r)
			outcome = OutcomeDeadLetter
		}
	}()

	if err := c.handler(ctx, &Delivery{Message: msg, Redelivered: redelivered}); err != nil {
		logger.Error("handler failed", "error", err)
		if c.requeue {
			return OutcomeRequeue
		}
		return OutcomeDeadLetter
	}
	return OutcomeAck
}

func (c *Consumer) settle(raw amqp.Delivery, outcome string) {
	var err error
	switch outcome {
	case OutcomeAck:
		err = raw.Ack(false)
	case OutcomeRequeue:
		err = raw.Nack(false, true)
	default:
		err = raw.Nack(false, false)
	}
	if err != nil {
		c.logger.Warn("failed to settle message", "outcome", outcome, "error", err)
	}

	telemetry.MQDeliveries.WithLabelValues(c.queue, outcome).Inc()
}

// Stop прерывает Start.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// ParsePayload переводит Message.Payload в T.
// После json.Unmarshal сообщения payload — map[string]any, поэтому
// он кодируется обратно и разбирается в нужный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
