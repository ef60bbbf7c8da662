// Package engine defines the boundary to the underlying BDD engine. The
// core orchestrates when the engine runs and with which step/hook registry
// state; feature parsing and scenario execution live behind this seam.
package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirlabs/systest/registry"
)

// FileLocation identifies a feature file, optionally pinned to a line.
// Line 0 means the whole file.
type FileLocation struct {
	Path string
	Line int
}

func (l FileLocation) String() string {
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.Path, l.Line)
	}
	return l.Path
}

// KV is a user-data definition (-D name=value).
type KV struct {
	Key   string
	Value string
}

// Options carries every engine-facing setting resolved by the
// configuration layer. Sequence-typed fields follow the engine's
// accumulation semantics: CLI values are prepended to environment and
// config-file values.
type Options struct {
	Formats  []string
	Outfiles []string
	Tags     []string
	Names    []string
	UserData []KV

	Language      string
	Jobs          int
	StopOnFailure bool
	DryRun        bool
	NoColor       bool
	NestedSteps   bool
	Verbose       bool

	// Utility-mode switches handled before any suite is required.
	TagsHelp bool
	LangList bool
	LangHelp string
}

// ScenarioResult is the per-scenario signal the engine feeds back to
// reporters.
type ScenarioResult struct {
	Area     string
	URI      string
	Name     string
	Tags     []string
	Passed   bool
	Skipped  bool
	Duration time.Duration
}

// RunResult summarizes one feature area run. Failed marks scenario
// failures; Aborted marks a run-level abort (e.g. a fatal hook failure)
// that must halt the area loop.
type RunResult struct {
	Failed  bool
	Aborted bool
}

// Reporter receives scenario results during the run and is finalized
// exactly once, after all feature areas complete.
type Reporter interface {
	Scenario(result ScenarioResult)
	End()
}

// Formatter owns one formatter output stream. The engine writes to it once
// per area; Close is deferred to the end of the whole run by the lifecycle
// wrapper.
type Formatter interface {
	Name() string
	Close() error
}

// Engine is the external BDD engine contract.
type Engine interface {
	Name() string
	Version() string

	// Formatters opens the formatter outputs for this run.
	Formatters(opts Options) ([]Formatter, error)

	// RunArea executes the scenarios of a single feature area using the
	// bindings currently active in reg. baseDir is the area's absolute
	// directory, the single root the engine resolves against.
	RunArea(ctx context.Context, opts Options, area string, baseDir string,
		locations []FileLocation, reg *registry.Registry, reporters []Reporter) (RunResult, error)

	// Utility performs engine-side utility actions (tag help, language
	// listing/help, "help" as a format) and reports whether one was handled.
	Utility(opts Options, w io.Writer) (bool, error)
}
