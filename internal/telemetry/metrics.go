package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики, общие для всех сервисов.
var (
	// TaskTransitions — количество переходов tasks по статусам.
	TaskTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dirigent_task_transitions_total",
		Help: "Total task status transitions",
	}, []string{"status"})

	// StepDuration — длительность выполнения шагов по capability.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dirigent_step_duration_seconds",
		Help:    "Step execution duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"capability"})

	// CapabilityInvocations — количество вызовов capabilities по исходу.
	CapabilityInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dirigent_capability_invocations_total",
		Help: "Total capability invocations by outcome",
	}, []string{"capability", "outcome"})

	// CapabilityLatency — длительность вызовов capabilities.
	CapabilityLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dirigent_capability_latency_seconds",
		Help:    "Capability invocation latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"capability"})

	// ActiveTasks — количество tasks, выполняемых engine'ом сейчас.
	ActiveTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dirigent_active_tasks",
		Help: "Tasks currently being executed",
	})

	// ResourceLocks — количество живых locks.
	ResourceLocks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dirigent_resource_locks",
		Help: "Live resource locks",
	})
)
