// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

var (
	// ReservationOps 统计 reserve/confirm/release 的调用结果。
	ReservationOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inventory",
		Name:      "reservations_total",
		Help:      "Reservation operations by op and result.",
	}, []string{"op", "result"})

	ReaperExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inventory",
		Name:      "reaper_expired_total",
		Help:      "Reservations converted to EXPIRED by the reaper.",
	})

	ReaperRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inventory",
		Name:      "reaper_runs_total",
		Help:      "Reaper runs by result (success, failure, skipped when not leader).",
	}, []string{"result"})

	SagaOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "order",
		Name:      "saga_total",
		Help:      "Saga executions by workflow and result.",
	}, []string{"workflow", "result"})

	SagaCompensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "order",
		Name:      "saga_compensations_total",
		Help:      "Compensating actions by step and result.",
	}, []string{"step", "result"})

	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "outbox",
		Name:      "published_total",
		Help:      "Outbox records published by topic and result.",
	}, []string{"topic", "result"})

	OutboxBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "outbox",
		Name:      "batch_size",
		Help:      "Number of outbox records claimed per relay tick.",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})

	DeadLetters = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mq",
		Name:      "dead_letters_total",
		Help:      "Messages observed on the dead-letter topic by original topic.",
	}, []string{"original_topic"})
)
