// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "threadcraft"

var (
	GenerationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_attempts_total",
			Help:      "Provider calls made by the generation engine, by outcome",
		},
		[]string{"provider", "outcome"},
	)
	CreditOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_operations_total",
			Help:      "Ledger transactions written, by operation",
		},
		[]string{"operation"},
	)
	ScheduledPosts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_posts_total",
			Help:      "Scheduled posts reaching a status",
		},
		[]string{"status"},
	)
	QueueEnqueue = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_enqueue_total",
			Help:      "Delayed job enqueue calls, by backend and result",
		},
		[]string{"backend", "result"},
	)
	QueueBrokerUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_broker_up",
			Help:      "1 when the job broker answered its last health probe",
		},
	)
)

var registerOnce sync.Once

func init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(GenerationAttempts, CreditOperations, ScheduledPosts, QueueEnqueue, QueueBrokerUp)
	})
}
