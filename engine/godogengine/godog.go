// Package godogengine adapts the godog BDD engine to the engine seam.
// godog parses the feature files and executes scenarios; this adapter
// installs the active registry bindings for each feature area and fans
// per-scenario results out to the configured reporters.
package godogengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/cucumber/godog"

	"github.com/sirlabs/systest/engine"
	"github.com/sirlabs/systest/registry"
)

const defaultFormat = "pretty"

// builtinFormats are godog's built-in formatters, listed for `--format help`.
var builtinFormats = map[string]string{
	"pretty":   "Prints every feature with runtime statuses.",
	"progress": "Prints a character per step.",
	"cucumber": "Produces cucumber JSON format output.",
	"events":   "Produces JSON event stream, based on spec: 0.1.0.",
	"junit":    "Prints junit compatible xml to stdout.",
}

// Engine runs feature areas through godog. One instance serves one run:
// formatter output streams are opened once and stay open across areas so
// the lifecycle wrapper can defer closing them to the end of the run.
type Engine struct {
	log        *slog.Logger
	formatters []*streamFormatter
}

// New creates a godog-backed engine.
func New(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: log}
}

func (e *Engine) Name() string { return "godog" }

func (e *Engine) Version() string { return godog.Version }

// streamFormatter owns one formatter output stream for the whole run.
type streamFormatter struct {
	format string
	out    io.Writer
	file   *os.File // nil when writing to stdout
}

func (f *streamFormatter) Name() string { return f.format }

func (f *streamFormatter) Close() error {
	if f.file == nil {
		return nil
	}
	return f.file.Close()
}

// Formatters opens the formatter output for this run. godog drives a
// single output stream, so exactly one format (default "pretty") and at
// most one outfile are accepted.
func (e *Engine) Formatters(opts engine.Options) ([]engine.Formatter, error) {
	if e.formatters != nil {
		result := make([]engine.Formatter, len(e.formatters))
		for i, f := range e.formatters {
			result[i] = f
		}
		return result, nil
	}

	if len(opts.Formats) > 1 || len(opts.Outfiles) > 1 {
		return nil, fmt.Errorf("the godog engine drives a single formatter output, got formats %v and outfiles %v",
			opts.Formats, opts.Outfiles)
	}

	format := defaultFormat
	if len(opts.Formats) == 1 {
		format = opts.Formats[0]
	}

	f := &streamFormatter{format: format, out: os.Stdout}
	if len(opts.Outfiles) == 1 {
		file, err := os.Create(opts.Outfiles[0])
		if err != nil {
			return nil, fmt.Errorf("failed to open formatter outfile: %w", err)
		}
		f.out = file
		f.file = file
	}

	e.formatters = []*streamFormatter{f}
	return []engine.Formatter{f}, nil
}

func tagNames(sc *godog.Scenario) []string {
	tags := make([]string, 0, len(sc.Tags))
	for _, t := range sc.Tags {
		tags = append(tags, t.Name)
	}
	return tags
}

// RunArea executes one feature area's scenarios against the bindings
// currently active in reg.
func (e *Engine) RunArea(ctx context.Context, opts engine.Options, area string, baseDir string,
	locations []engine.FileLocation, reg *registry.Registry, reporters []engine.Reporter) (engine.RunResult, error) {

	if _, err := e.Formatters(opts); err != nil {
		return engine.RunResult{}, err
	}

	// Run-level hooks are driven here so their errors can abort the area
	// loop instead of vanishing inside the engine.
	for _, hook := range reg.RunHooks(registry.BeforeAll) {
		if err := hook(ctx); err != nil {
			e.log.Error("before_all hook failed", "area", area, "err", err)
			return engine.RunResult{Failed: true, Aborted: true}, nil
		}
	}

	paths := make([]string, len(locations))
	for i, loc := range locations {
		paths[i] = loc.String()
	}

	gopts := &godog.Options{
		Paths:         paths,
		Format:        e.formatters[0].format,
		Output:        e.formatters[0].out,
		Tags:          strings.Join(opts.Tags, " && "),
		StopOnFailure: opts.StopOnFailure,
		NoColors:      opts.NoColor,
		Concurrency:   opts.Jobs,
	}

	status := godog.TestSuite{
		Name:                area,
		ScenarioInitializer: e.scenarioInitializer(opts, area, reg, reporters),
		Options:             gopts,
	}.Run()

	result := engine.RunResult{}
	switch status {
	case 0:
	case 1:
		result.Failed = true
	default:
		// godog rejected the run outright (e.g. option errors); treat it
		// as a run-level abort.
		result.Failed = true
		result.Aborted = true
	}

	if result.Aborted {
		return result, nil
	}

	for _, hook := range reg.RunHooks(registry.AfterAll) {
		if err := hook(ctx); err != nil {
			e.log.Error("after_all hook failed", "area", area, "err", err)
			result.Failed = true
			result.Aborted = true
		}
	}
	return result, nil
}

func (e *Engine) scenarioInitializer(opts engine.Options, area string,
	reg *registry.Registry, reporters []engine.Reporter) func(*godog.ScenarioContext) {

	return func(sc *godog.ScenarioContext) {
		for _, kv := range opts.UserData {
			kv := kv
			sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				return context.WithValue(ctx, userDataKey(kv.Key), kv.Value), nil
			})
		}

		for _, def := range reg.Steps() {
			sc.Step(def.Pattern, def.Handler)
		}

		for _, hook := range reg.ScenarioHooks(registry.BeforeScenario) {
			hook := hook
			sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
				return ctx, hook(ctx, s.Name, tagNames(s))
			})
		}
		for _, hook := range reg.ScenarioHooks(registry.AfterScenario) {
			hook := hook
			sc.After(func(ctx context.Context, s *godog.Scenario, err error) (context.Context, error) {
				if hookErr := hook(ctx, s.Name, tagNames(s)); hookErr != nil {
					return ctx, hookErr
				}
				return ctx, err
			})
		}

		steps := sc.StepContext()
		for _, hook := range reg.StepHooks(registry.BeforeStep) {
			hook := hook
			steps.Before(func(ctx context.Context, st *godog.Step) (context.Context, error) {
				return ctx, hook(ctx, st.Text)
			})
		}
		for _, hook := range reg.StepHooks(registry.AfterStep) {
			hook := hook
			steps.After(func(ctx context.Context, st *godog.Step, status godog.StepResultStatus, err error) (context.Context, error) {
				if hookErr := hook(ctx, st.Text); hookErr != nil {
					return ctx, hookErr
				}
				return ctx, err
			})
		}

		// Result fan-out to reporters runs last, after user hooks settled
		// the scenario's fate.
		sc.After(func(ctx context.Context, s *godog.Scenario, err error) (context.Context, error) {
			result := engine.ScenarioResult{
				Area:    area,
				URI:     s.Uri,
				Name:    s.Name,
				Tags:    tagNames(s),
				Passed:  err == nil,
				Skipped: errors.Is(err, godog.ErrPending),
			}
			for _, reporter := range reporters {
				reporter.Scenario(result)
			}
			return ctx, err
		})
	}
}

type userDataKey string

// UserData retrieves a -D name=value definition from a step context.
func UserData(ctx context.Context, key string) (string, bool) {
	v, ok := ctx.Value(userDataKey(key)).(string)
	return v, ok
}

// Utility handles engine-side utility requests: tag-expression help,
// language listing/help and "help" requested as a format.
func (e *Engine) Utility(opts engine.Options, w io.Writer) (bool, error) {
	switch {
	case opts.TagsHelp:
		fmt.Fprintln(w, `Scenarios inherit tags declared on the feature level.
A tag expression selects scenarios, e.g.:
  --tags @wip               scenarios tagged @wip
  --tags ~@wip              scenarios without @wip
  --tags @wip && ~@new      tagged @wip and not @new
  --tags @wip,@undone       tagged @wip or @undone`)
		return true, nil
	case opts.LangList, opts.Language == "help":
		fmt.Fprintln(w, "Supported feature file languages: Gherkin dialects (en, de, fr, ja, ...).")
		return true, nil
	case opts.LangHelp != "":
		fmt.Fprintf(w, "Keywords for %q follow the Gherkin dialect definition.\n", opts.LangHelp)
		return true, nil
	case containsHelp(opts.Formats):
		names := make([]string, 0, len(builtinFormats))
		for name := range builtinFormats {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(w, "Available formatters:")
		for _, name := range names {
			fmt.Fprintf(w, "  %-10s %s\n", name, builtinFormats[name])
		}
		return true, nil
	}
	return false, nil
}

func containsHelp(formats []string) bool {
	for _, f := range formats {
		if f == "help" {
			return true
		}
	}
	return false
}
