// Package runner orchestrates a test run across feature areas. Areas run
// strictly one after another in first-discovery order; before each area the
// step/hook registry is reset and reloaded so no binding from a previous
// area survives into the next.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sirlabs/systest/config"
	"github.com/sirlabs/systest/engine"
	"github.com/sirlabs/systest/metrics"
	"github.com/sirlabs/systest/registry"
)

// Runner drives one test run over the resolved feature areas.
type Runner struct {
	log    *slog.Logger
	cfg    *config.Config
	eng    engine.Engine
	reg    *registry.Registry
	tracer trace.Tracer
}

// New creates a runner for one resolved configuration. The runner becomes
// the registry's sole writer for the duration of the run.
func New(cfg *config.Config, reg *registry.Registry) *Runner {
	return &Runner{
		log:    cfg.Log,
		cfg:    cfg,
		eng:    cfg.Engine,
		reg:    reg,
		tracer: otel.Tracer("systest/runner"),
	}
}

// Run executes every discovered feature area and reports whether any of
// them failed. The configuration's paths and base directory are re-pointed
// per area and restored when the run completes, and every formatter and
// reporter is finalized exactly once, whatever the outcome.
func (r *Runner) Run(ctx context.Context) (failed bool, err error) {
	originalPaths := r.cfg.Paths
	originalBaseDir := r.cfg.BaseDir
	defer func() {
		r.cfg.Paths = originalPaths
		r.cfg.BaseDir = originalBaseDir
		r.finish()
	}()

	groups, err := r.resolvePaths(r.cfg.Paths, r.cfg.SuiteData.FeaturesPath)
	if err != nil {
		metrics.RecordError("path_resolution")
		return true, err
	}
	if len(groups) == 0 {
		return true, config.NewError(errors.New("no feature files found"))
	}

	areas := make([]string, len(groups))
	for i, g := range groups {
		areas[i] = g.Area
	}
	r.log.Info("starting test run",
		"run", r.cfg.RunID, "suite", r.cfg.Suite, "areas", areas)

	for _, group := range groups {
		result, err := r.runArea(ctx, group)
		if err != nil {
			return true, err
		}
		if result.Failed {
			failed = true
		}
		if result.Aborted {
			r.log.Error("run aborted by the engine", "area", group.Area)
			break
		}
		if result.Failed && r.cfg.Options.StopOnFailure {
			r.log.Info("stopping at first failure", "area", group.Area)
			break
		}
	}

	metrics.RecordRun(r.cfg.RunID, r.cfg.Suite, failed)
	return failed, nil
}

// runArea points the configuration at one area, swaps in that area's
// bindings and hands the area's locations to the engine.
func (r *Runner) runArea(ctx context.Context, group AreaGroup) (engine.RunResult, error) {
	ctx, span := r.tracer.Start(ctx, "feature-area",
		trace.WithAttributes(
			attribute.String("area", group.Area),
			attribute.String("suite", r.cfg.Suite),
		))
	defer span.End()

	baseDir := r.cfg.SuiteData.FeaturesPath
	if group.Area != "." {
		baseDir = filepath.Join(baseDir, group.Area)
	}
	r.cfg.BaseDir = baseDir
	paths := make([]string, len(group.Locations))
	for i, loc := range group.Locations {
		paths[i] = loc.String()
	}
	r.cfg.Paths = paths

	r.reg.Reset()
	r.reg.Activate(group.Area, r.cfg.Options.NestedSteps)

	r.log.Info("running feature area", "area", group.Area, "files", len(group.Locations))
	result, err := r.eng.RunArea(ctx, r.cfg.Options, group.Area, baseDir,
		group.Locations, r.reg, r.cfg.EngineReporters())
	if err != nil {
		metrics.RecordError("engine")
		return result, err
	}

	metrics.RecordArea(r.cfg.RunID, r.cfg.Suite, result.Failed)
	return result, nil
}

// finish finalizes every reporter and formatter exactly once. The engine's
// own per-area finalize calls were suppressed by the lifecycle wrappers.
func (r *Runner) finish() {
	for _, rep := range r.cfg.Reporters {
		rep.Done()
	}
	for _, f := range r.cfg.Formatters {
		if err := f.Done(); err != nil {
			r.log.Error("failed to close formatter output", "formatter", f.Name(), "err", err)
		}
	}
}
