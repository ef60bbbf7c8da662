package reporter

import (
	"github.com/sirlabs/systest/engine"
	"github.com/sirlabs/systest/metrics"
)

// Metrics feeds scenario outcomes into the Prometheus collectors.
type Metrics struct {
	runID string
	suite string
}

// NewMetrics creates a metrics reporter bound to one run and suite.
func NewMetrics(runID, suite string) *Metrics {
	return &Metrics{runID: runID, suite: suite}
}

func (m *Metrics) Scenario(res engine.ScenarioResult) {
	metrics.RecordScenario(m.runID, m.suite, res.Area, string(scenarioOutcome(res)))
}

func (m *Metrics) End() {}
