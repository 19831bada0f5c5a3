package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Значения label "result".
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

var (
	// WorkflowRuns — запуски workflow по шагу и результату запуска контейнера.
	WorkflowRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "novoflow_workflow_runs_total",
		Help: "Workflow invocations by step and launch result",
	}, []string{"step", "result"})

	// ContainerLaunches — вызовы docker run.
	ContainerLaunches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "novoflow_container_launches_total",
		Help: "Container launch attempts by result",
	}, []string{"result"})

	// ImagePulls — загрузки образов.
	ImagePulls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "novoflow_image_pulls_total",
		Help: "Image pulls by result",
	}, []string{"result"})

	// TaskDuration — время от создания task до финального статуса.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "novoflow_task_duration_seconds",
		Help:    "Time from task creation to terminal status",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"step", "status"})

	// ActiveWatchers — контейнеры, ожидающие завершения.
	ActiveWatchers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "novoflow_active_watchers",
		Help: "Containers currently observed for completion",
	})

	// MQReconnects — попытки переподключения к RabbitMQ.
	MQReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "novoflow_mq_reconnects_total",
		Help: "RabbitMQ reconnect attempts by result",
	}, []string{"result"})

	// MQDeliveries — обработанные сообщения по очереди и исходу (ack, requeue, dead_letter).
	MQDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "novoflow_mq_deliveries_total",
		Help: "Consumed messages by queue and outcome",
	}, []string{"queue", "outcome"})

	// ActiveLogFollowers — фоновые процессы logs -f.
	ActiveLogFollowers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "novoflow_active_log_followers",
		Help: "Background log follow processes",
	})
)

// ResultLabel переводит bool в значение label "result".
func ResultLabel(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailed
}
