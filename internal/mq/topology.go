package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeWorkflows Exchange = "novoflow.workflows"
	ExchangeTasks     Exchange = "novoflow.tasks"
	ExchangeDLQ       Exchange = "novoflow.dlq"
)

// Queues — имена очередей.
const (
	QueueWorkflowsRequested Queue = "workflows.requested"
	QueueTasksLaunched      Queue = "tasks.launched"
	QueueTasksCompleted     Queue = "tasks.completed"
	QueueDLQWorkflows       Queue = "dlq.workflows"
)

// Routing keys.
const (
	RoutingKeyRequested    RoutingKey = "requested"
	RoutingKeyLaunched     RoutingKey = "launched"
	RoutingKeyCompleted    RoutingKey = "completed"
	RoutingKeyDLQWorkflows RoutingKey = "workflows"
)

// SetupTopology объявляет exchanges, queues и bindings. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		if err := bindQueues(ch); err != nil {
			return err
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeWorkflows, "direct"},
		{ExchangeTasks, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Аргументы для очередей с DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQWorkflows),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// workflows.requested — с DLQ (некорректные запросы)
		{QueueWorkflowsRequested, dlqArgs},

		// tasks.launched, tasks.completed — события для внешних подписчиков
		{QueueTasksLaunched, nil},
		{QueueTasksCompleted, nil},

		// dlq.workflows — сама DLQ очередь
		{QueueDLQWorkflows, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueWorkflowsRequested, RoutingKeyRequested, ExchangeWorkflows},
		{QueueTasksLaunched, RoutingKeyLaunched, ExchangeTasks},
		{QueueTasksCompleted, RoutingKeyCompleted, ExchangeTasks},
		{QueueDLQWorkflows, RoutingKeyDLQWorkflows, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Novoflow RabbitMQ Topology:

    novoflow.workflows (direct)
    └── workflows.requested [routing: requested]
            Consumer: Worker
            DLQ: dlq.workflows

    novoflow.tasks (direct)
    ├── tasks.launched [routing: launched]
    └── tasks.completed [routing: completed]
            Consumers: external subscribers

    novoflow.dlq (direct)
    └── dlq.workflows [routing: workflows]
            Manual processing
  `
}
