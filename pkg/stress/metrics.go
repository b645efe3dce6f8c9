package stress

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	stressOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "atomic128",
			Name:      "stress_operations_total",
			Help:      "Total number of operations performed against 128-bit atomic variables under test.",
		},
		[]string{"operation", "outcome"})
	stressTornValuesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "atomic128",
			Name:      "stress_torn_values_total",
			Help:      "Total number of values observed that were not written by any worker.",
		})
	stressRunDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "buildbarn",
			Subsystem: "atomic128",
			Name:      "stress_run_duration_seconds",
			Help:      "Amount of time spent per stress test run, in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 10, 7),
		})
)

func init() {
	prometheus.MustRegister(stressOperationsTotal)
	prometheus.MustRegister(stressTornValuesTotal)
	prometheus.MustRegister(stressRunDurationSeconds)
}

// operationCounters holds the Prometheus counters for every
// combination of operation and outcome, so that workers don't need to
// perform label lookups.
type operationCounters [operationCount][2]prometheus.Counter

func newOperationCounters() *operationCounters {
	var c operationCounters
	for _, operation := range AllOperations {
		c[operation][outcomeSucceeded] = stressOperationsTotal.WithLabelValues(operation.String(), "Succeeded")
		c[operation][outcomeFailed] = stressOperationsTotal.WithLabelValues(operation.String(), "Failed")
	}
	return &c
}

const (
	outcomeSucceeded = 0
	outcomeFailed    = 1
)
