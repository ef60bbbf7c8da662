// Package registry holds the hook and step bindings active for the engine.
// Exactly one feature area's bindings are active at a time: activating an
// area fully replaces whatever the previous area registered, so step
// patterns and hooks can never leak between areas.
//
// Step and hook code registers itself under a feature-area key from init
// functions, the way database/sql drivers register themselves. The runner
// owns the Registry and is its only writer.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// HookEvent names a lifecycle boundary a hook attaches to.
type HookEvent int

const (
	BeforeAll HookEvent = iota
	AfterAll
	BeforeScenario
	AfterScenario
	BeforeStep
	AfterStep
)

func (e HookEvent) String() string {
	switch e {
	case BeforeAll:
		return "before_all"
	case AfterAll:
		return "after_all"
	case BeforeScenario:
		return "before_scenario"
	case AfterScenario:
		return "after_scenario"
	case BeforeStep:
		return "before_step"
	case AfterStep:
		return "after_step"
	}
	return "unknown"
}

// RunHook runs at the before_all/after_all boundaries.
type RunHook func(ctx context.Context) error

// ScenarioHook runs around a scenario.
type ScenarioHook func(ctx context.Context, name string, tags []string) error

// StepHook runs around a single step.
type StepHook func(ctx context.Context, stepText string) error

// StepDefinition binds a step pattern to its handler. The handler's
// signature is interpreted by the engine adapter.
type StepDefinition struct {
	Pattern string
	Handler any
}

// StepSet collects step definitions during activation.
type StepSet struct {
	defs []StepDefinition
}

// Step registers a pattern-matched step implementation.
func (s *StepSet) Step(pattern string, handler any) {
	s.defs = append(s.defs, StepDefinition{Pattern: pattern, Handler: handler})
}

// HookSet collects hooks during activation.
type HookSet struct {
	runHooks      map[HookEvent][]RunHook
	scenarioHooks map[HookEvent][]ScenarioHook
	stepHooks     map[HookEvent][]StepHook
}

func newHookSet() *HookSet {
	return &HookSet{
		runHooks:      make(map[HookEvent][]RunHook),
		scenarioHooks: make(map[HookEvent][]ScenarioHook),
		stepHooks:     make(map[HookEvent][]StepHook),
	}
}

// BeforeAll registers a hook invoked once before the area's scenarios.
func (h *HookSet) BeforeAll(fn RunHook) { h.runHooks[BeforeAll] = append(h.runHooks[BeforeAll], fn) }

// AfterAll registers a hook invoked once after the area's scenarios.
func (h *HookSet) AfterAll(fn RunHook) { h.runHooks[AfterAll] = append(h.runHooks[AfterAll], fn) }

// BeforeScenario registers a hook invoked before every scenario.
func (h *HookSet) BeforeScenario(fn ScenarioHook) {
	h.scenarioHooks[BeforeScenario] = append(h.scenarioHooks[BeforeScenario], fn)
}

// AfterScenario registers a hook invoked after every scenario.
func (h *HookSet) AfterScenario(fn ScenarioHook) {
	h.scenarioHooks[AfterScenario] = append(h.scenarioHooks[AfterScenario], fn)
}

// BeforeStep registers a hook invoked before every step.
func (h *HookSet) BeforeStep(fn StepHook) {
	h.stepHooks[BeforeStep] = append(h.stepHooks[BeforeStep], fn)
}

// AfterStep registers a hook invoked after every step.
func (h *HookSet) AfterStep(fn StepHook) {
	h.stepHooks[AfterStep] = append(h.stepHooks[AfterStep], fn)
}

// StepSetup populates a StepSet for one step module.
type StepSetup func(*StepSet)

// HookSetup populates a HookSet for one area's environment module.
type HookSetup func(*HookSet)

type stepEntry struct {
	key   string
	setup StepSetup
}

var (
	manifestMu sync.RWMutex
	stepSetups []stepEntry
	hookSetups = make(map[string]HookSetup)
)

// RegisterSteps registers a step module under a feature-area key. Nested
// step modules register under "area/sub" keys and are only activated when
// nested-step support is enabled. Multiple modules per key are allowed and
// activate in registration order.
func RegisterSteps(key string, setup StepSetup) {
	if key == "" || setup == nil {
		panic("registry: RegisterSteps requires a key and a setup function")
	}
	manifestMu.Lock()
	defer manifestMu.Unlock()
	stepSetups = append(stepSetups, stepEntry{key: key, setup: setup})
}

// RegisterHooks registers an area's environment hooks. At most one hook
// module per area key.
func RegisterHooks(key string, setup HookSetup) {
	if key == "" || setup == nil {
		panic("registry: RegisterHooks requires a key and a setup function")
	}
	manifestMu.Lock()
	defer manifestMu.Unlock()
	if _, dup := hookSetups[key]; dup {
		panic(fmt.Sprintf("registry: duplicate hook registration for area %q", key))
	}
	hookSetups[key] = setup
}

// Registry is the process-wide binding state the engine executes against.
type Registry struct {
	log   *slog.Logger
	steps *StepSet
	hooks *HookSet
}

// New creates an empty registry.
func New(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{log: log, steps: &StepSet{}, hooks: newHookSet()}
}

// Reset discards every active binding. It never merges: the next Activate
// starts from an empty state.
func (r *Registry) Reset() {
	r.steps = &StepSet{}
	r.hooks = newHookSet()
}

// Activate installs the bindings registered for a feature area. A missing
// manifest entry means the area has no hooks or steps, not an error. When
// nested is true, modules registered under "area/..." keys are activated
// as well, in registration order.
func (r *Registry) Activate(area string, nested bool) {
	manifestMu.RLock()
	defer manifestMu.RUnlock()

	if setup, ok := hookSetups[area]; ok {
		setup(r.hooks)
	} else {
		r.log.Debug("no hooks registered for feature area", "area", area)
	}

	loaded := 0
	prefix := area + "/"
	for _, entry := range stepSetups {
		if entry.key == area || (nested && strings.HasPrefix(entry.key, prefix)) {
			entry.setup(r.steps)
			loaded++
		}
	}
	r.log.Debug("activated feature area bindings",
		"area", area, "stepModules", loaded, "steps", len(r.steps.defs))
}

// Steps returns the active step definitions.
func (r *Registry) Steps() []StepDefinition {
	return r.steps.defs
}

// StepPatterns returns the active step patterns, in activation order.
func (r *Registry) StepPatterns() []string {
	patterns := make([]string, 0, len(r.steps.defs))
	for _, d := range r.steps.defs {
		patterns = append(patterns, d.Pattern)
	}
	return patterns
}

// HasStep reports whether a step with the exact pattern is active.
func (r *Registry) HasStep(pattern string) bool {
	for _, d := range r.steps.defs {
		if d.Pattern == pattern {
			return true
		}
	}
	return false
}

// RunHooks returns the active hooks for a run-level event.
func (r *Registry) RunHooks(event HookEvent) []RunHook {
	return r.hooks.runHooks[event]
}

// ScenarioHooks returns the active hooks for a scenario-level event.
func (r *Registry) ScenarioHooks(event HookEvent) []ScenarioHook {
	return r.hooks.scenarioHooks[event]
}

// StepHooks returns the active hooks for a step-level event.
func (r *Registry) StepHooks(event HookEvent) []StepHook {
	return r.hooks.stepHooks[event]
}

// resetManifest clears the global manifest. Test helper.
func resetManifest() {
	manifestMu.Lock()
	defer manifestMu.Unlock()
	stepSetups = nil
	hookSetups = make(map[string]HookSetup)
}
