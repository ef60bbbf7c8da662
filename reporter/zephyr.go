// Package reporter implements the run-level reporters fed by the engine:
// Zephyr test-cycle aggregation and Prometheus scenario counting.
package reporter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/sirlabs/systest/engine"
)

// testIDPrefix marks scenario tags that identify a Zephyr test case.
const testIDPrefix = "SIR-T"

// Result is the aggregated outcome of one Zephyr test case.
type Result string

const (
	Passed  Result = "PASSED"
	Skipped Result = "SKIPPED"
	Failed  Result = "FAILED"
)

// resultRank orders outcomes for worst-result-wins aggregation.
var resultRank = map[Result]int{
	Passed:  0,
	Skipped: 1,
	Failed:  2,
}

func worse(a, b Result) Result {
	if resultRank[b] > resultRank[a] {
		return b
	}
	return a
}

// Zephyr aggregates scenario outcomes per Zephyr test identification tag.
// A test case covered by several scenarios keeps its worst outcome. The
// summary table is printed at the end of the run; a test cycle file is
// additionally written when an output path is configured.
type Zephyr struct {
	log     *slog.Logger
	runID   string
	cycleID string
	outFile string
	out     io.Writer

	mu      sync.Mutex
	order   []string
	results map[string]Result
}

// NewZephyr creates a Zephyr reporter for one run. outFile may be empty,
// in which case only the summary table is produced.
func NewZephyr(runID, cycleID, outFile string, out io.Writer, log *slog.Logger) *Zephyr {
	if out == nil {
		out = os.Stdout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Zephyr{
		log:     log,
		runID:   runID,
		cycleID: cycleID,
		outFile: outFile,
		out:     out,
		results: make(map[string]Result),
	}
}

func scenarioOutcome(res engine.ScenarioResult) Result {
	switch {
	case res.Skipped:
		return Skipped
	case res.Passed:
		return Passed
	default:
		return Failed
	}
}

// Scenario folds one scenario outcome into every test case it is tagged
// with. Test cases keep the order they were first seen in.
func (z *Zephyr) Scenario(res engine.ScenarioResult) {
	outcome := scenarioOutcome(res)

	z.mu.Lock()
	defer z.mu.Unlock()
	for _, tag := range res.Tags {
		id := strings.TrimPrefix(tag, "@")
		if !strings.HasPrefix(id, testIDPrefix) {
			continue
		}
		if prev, seen := z.results[id]; seen {
			z.results[id] = worse(prev, outcome)
		} else {
			z.order = append(z.order, id)
			z.results[id] = outcome
		}
	}
}

// cycleFile is the YAML document written for test cycle upload. Results
// keep the order the test cases were first seen in.
type cycleFile struct {
	CycleID string        `yaml:"cycle_id"`
	RunID   string        `yaml:"run_id"`
	Results []cycleResult `yaml:"results"`
}

type cycleResult struct {
	TestID string `yaml:"test_id"`
	Status string `yaml:"status"`
}

// End renders the aggregated summary and writes the test cycle file when
// configured.
func (z *Zephyr) End() {
	z.mu.Lock()
	defer z.mu.Unlock()

	if len(z.order) == 0 {
		z.log.Debug("no test identification tags seen, skipping test cycle summary")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(z.out)
	t.SetTitle("Test Cycle %s", z.cycleID)
	t.AppendHeader(table.Row{"Test", "Result"})
	for _, id := range z.order {
		t.AppendRow(table.Row{id, string(z.results[id])})
	}
	t.Render()

	if z.outFile == "" {
		return
	}
	if err := z.writeCycleFile(); err != nil {
		z.log.Error("failed to write test cycle file", "path", z.outFile, "err", err)
	}
}

func (z *Zephyr) writeCycleFile() error {
	doc := cycleFile{
		CycleID: z.cycleID,
		RunID:   z.runID,
		Results: make([]cycleResult, 0, len(z.order)),
	}
	for _, id := range z.order {
		doc.Results = append(doc.Results, cycleResult{TestID: id, Status: string(z.results[id])})
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal test cycle: %w", err)
	}
	return os.WriteFile(z.outFile, data, 0o644)
}
