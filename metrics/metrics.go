// Package metrics records run, area and scenario outcomes as Prometheus
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricsNamespace = "systest"

var (
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	scenariosTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "scenarios_total",
		Help:      "Count of executed scenarios",
	}, []string{
		"run_id",
		"suite",
		"area",
		"result",
	})

	areasTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "feature_areas_total",
		Help:      "Count of executed feature areas",
	}, []string{
		"run_id",
		"suite",
		"result",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of complete runs",
	}, []string{
		"run_id",
		"suite",
		"result",
	})
)

func resultLabel(failed bool) string {
	if failed {
		return "fail"
	}
	return "pass"
}

// RecordError increments the error counter for a named error condition.
func RecordError(errorName string) {
	errorsTotal.WithLabelValues(errorName).Inc()
}

// RecordScenario counts one scenario outcome.
func RecordScenario(runID, suite, area, result string) {
	scenariosTotal.WithLabelValues(runID, suite, area, result).Inc()
}

// RecordArea counts one completed feature area.
func RecordArea(runID, suite string, failed bool) {
	areasTotal.WithLabelValues(runID, suite, resultLabel(failed)).Inc()
}

// RecordRun records the outcome of a complete run.
func RecordRun(runID, suite string, failed bool) {
	runResults.WithLabelValues(runID, suite, resultLabel(failed)).Set(1)
}
