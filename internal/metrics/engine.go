package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	purchasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "purchase",
			Name:      "purchases_total",
			Help:      "Total number of purchase attempts by outcome",
		},
		[]string{"status"}, // status: completed, rejected, settlement_failed, conflict
	)

	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Total number of strategy executions by outcome",
		},
		[]string{"status"}, // status: completed, failed
	)

	executionStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "executor",
			Name:      "steps_total",
			Help:      "Total number of executed steps by type and outcome",
		},
		[]string{"step_type", "status"},
	)

	executionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "engine",
			Subsystem: "executor",
			Name:      "execution_duration_seconds",
			Help:      "Duration of full strategy executions",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	gasUsedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "executor",
			Name:      "gas_used_total",
			Help:      "Cumulative gas consumed across all executed steps",
		},
	)

	triggerFiresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "scheduler",
			Name:      "trigger_fires_total",
			Help:      "Total number of trigger callback deliveries by outcome",
		},
		[]string{"status"}, // status: delivered, failed
	)
)

func RecordPurchase(status string) {
	purchasesTotal.WithLabelValues(status).Inc()
}

func RecordExecution(success bool, duration time.Duration, gasUsed uint64) {
	status := "completed"
	if !success {
		status = "failed"
	}
	executionsTotal.WithLabelValues(status).Inc()
	executionDuration.Observe(duration.Seconds())
	gasUsedTotal.Add(float64(gasUsed))
}

func RecordStep(stepType string, success bool) {
	status := "completed"
	if !success {
		status = "failed"
	}
	executionStepsTotal.WithLabelValues(stepType, status).Inc()
}

func RecordTriggerFire(delivered bool) {
	status := "delivered"
	if !delivered {
		status = "failed"
	}
	triggerFiresTotal.WithLabelValues(status).Inc()
}
