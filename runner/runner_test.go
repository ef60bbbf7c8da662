package runner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirlabs/systest/config"
	"github.com/sirlabs/systest/engine"
	"github.com/sirlabs/systest/registry"
	"github.com/sirlabs/systest/suite"
	"github.com/sirlabs/systest/wrapper"
)

type areaCall struct {
	area       string
	baseDir    string
	locations  []engine.FileLocation
	hadFooStep bool
}

type fakeEngine struct {
	calls []areaCall
	fail  map[string]bool
	abort map[string]bool
}

func (e *fakeEngine) Name() string    { return "fake" }
func (e *fakeEngine) Version() string { return "0.0.0" }

func (e *fakeEngine) Formatters(opts engine.Options) ([]engine.Formatter, error) {
	return nil, nil
}

func (e *fakeEngine) RunArea(ctx context.Context, opts engine.Options, area string, baseDir string,
	locations []engine.FileLocation, reg *registry.Registry, reporters []engine.Reporter) (engine.RunResult, error) {
	e.calls = append(e.calls, areaCall{
		area:       area,
		baseDir:    baseDir,
		locations:  locations,
		hadFooStep: reg.HasStep("^foo$"),
	})
	return engine.RunResult{Failed: e.fail[area], Aborted: e.abort[area]}, nil
}

func (e *fakeEngine) Utility(opts engine.Options, w io.Writer) (bool, error) {
	return false, nil
}

// makeFeatures lays out a features root with the given area directories and
// feature files.
func makeFeatures(t *testing.T, areas map[string][]string) string {
	t.Helper()
	root := t.TempDir()
	for area, files := range areas {
		dir := filepath.Join(root, area)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for _, file := range files {
			require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte("Feature: x\n"), 0o644))
		}
	}
	return root
}

func newTestRunner(t *testing.T, root string, paths []string, eng *fakeEngine) (*Runner, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		Log:       slog.Default(),
		Engine:    eng,
		Suite:     "mock",
		RunID:     "test-run",
		SuiteData: suite.Data{FeaturesPath: root},
		Paths:     paths,
		BaseDir:   root,
	}
	return New(cfg, registry.New(cfg.Log)), cfg
}

func TestParseSpecifier(t *testing.T) {
	tests := []struct {
		raw      string
		wantPath string
		wantLine int
		wantErr  bool
	}{
		{raw: "areaA/x.feature", wantPath: "areaA/x.feature"},
		{raw: "areaA/x.feature:12", wantPath: "areaA/x.feature", wantLine: 12},
		{raw: "areaA/x.feature:0", wantPath: "areaA/x.feature", wantLine: 0},
		{raw: "areaA/x.feature:-3", wantErr: true},
		{raw: "areaA/x.feature:nope", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			spec, err := parseSpecifier(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, config.IsError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, spec.path)
			assert.Equal(t, tt.wantLine, spec.line)
		})
	}
}

func TestGroupingKeepsFirstEncounterOrder(t *testing.T) {
	root := makeFeatures(t, map[string][]string{
		"areaA": {"a2.feature", "a1.feature"},
		"areaB": {"x.feature"},
	})
	eng := &fakeEngine{}
	r, _ := newTestRunner(t, root, []string{"areaB/x.feature", "areaA/*.feature"}, eng)

	failed, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, failed)

	require.Len(t, eng.calls, 2)
	assert.Equal(t, "areaB", eng.calls[0].area, "area order follows first encounter, not the alphabet")
	assert.Equal(t, "areaA", eng.calls[1].area)

	areaA := eng.calls[1].locations
	require.Len(t, areaA, 2)
	assert.Equal(t, filepath.Join(root, "areaA", "a1.feature"), areaA[0].Path)
	assert.Equal(t, filepath.Join(root, "areaA", "a2.feature"), areaA[1].Path)
}

func TestSpecifierEscapingFeaturesRootIsFatal(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "features")
	require.NoError(t, os.MkdirAll(root, 0o755))
	outside := filepath.Join(base, "outside")
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "x.feature"), []byte("Feature: x\n"), 0o644))

	eng := &fakeEngine{}
	r, _ := newTestRunner(t, root, []string{"../outside/x.feature"}, eng)

	failed, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, failed)
	assert.True(t, config.IsError(err))
	assert.Empty(t, eng.calls)
}

func TestListFileExpansion(t *testing.T) {
	root := makeFeatures(t, map[string][]string{"areaA": {"a1.feature"}})
	listFile := filepath.Join(t.TempDir(), "paths.txt")
	require.NoError(t, os.WriteFile(listFile, []byte("\n# a comment\nareaA/a1.feature:3\n"), 0o644))

	eng := &fakeEngine{}
	r, _ := newTestRunner(t, root, []string{"@" + listFile}, eng)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, eng.calls, 1)
	require.Len(t, eng.calls[0].locations, 1)
	assert.Equal(t, 3, eng.calls[0].locations[0].Line)
}

func TestDirectoryTargetInheritsLineNumber(t *testing.T) {
	root := makeFeatures(t, map[string][]string{"areaA": {"a1.feature", "a2.feature"}})
	eng := &fakeEngine{}
	r, _ := newTestRunner(t, root, []string{"areaA:7"}, eng)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, eng.calls, 1)
	require.Len(t, eng.calls[0].locations, 2)
	for _, loc := range eng.calls[0].locations {
		assert.Equal(t, 7, loc.Line)
	}
}

func TestDuplicateLocationsCollapse(t *testing.T) {
	root := makeFeatures(t, map[string][]string{"areaA": {"a1.feature"}})
	eng := &fakeEngine{}
	r, _ := newTestRunner(t, root, []string{"areaA/a1.feature", "areaA/*.feature"}, eng)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, eng.calls, 1)
	assert.Len(t, eng.calls[0].locations, 1)
}

func TestStopOnFirstFailure(t *testing.T) {
	root := makeFeatures(t, map[string][]string{
		"a": {"a.feature"},
		"b": {"b.feature"},
		"c": {"c.feature"},
	})
	eng := &fakeEngine{fail: map[string]bool{"a": true}}
	r, _ := newTestRunner(t, root, []string{"a", "b", "c"}, eng)
	r.cfg.Options.StopOnFailure = true

	failed, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, failed)
	require.Len(t, eng.calls, 1)
	assert.Equal(t, "a", eng.calls[0].area)
}

func TestFailureWithoutStopRunsRemainingAreas(t *testing.T) {
	root := makeFeatures(t, map[string][]string{
		"a": {"a.feature"},
		"b": {"b.feature"},
	})
	eng := &fakeEngine{fail: map[string]bool{"a": true}}
	r, _ := newTestRunner(t, root, []string{"a", "b"}, eng)

	failed, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, failed)
	assert.Len(t, eng.calls, 2)
}

func TestAbortHaltsAreaLoop(t *testing.T) {
	root := makeFeatures(t, map[string][]string{
		"a": {"a.feature"},
		"b": {"b.feature"},
	})
	eng := &fakeEngine{abort: map[string]bool{"a": true}}
	r, _ := newTestRunner(t, root, []string{"a", "b"}, eng)

	failed, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, failed, "an abort without scenario failures is not a failed run")
	assert.Len(t, eng.calls, 1)
}

func TestAreaIsolation(t *testing.T) {
	registry.RegisterSteps("iso-a", func(s *registry.StepSet) {
		s.Step("^foo$", func() error { return nil })
	})

	root := makeFeatures(t, map[string][]string{
		"iso-a": {"a.feature"},
		"iso-b": {"b.feature"},
	})
	eng := &fakeEngine{}
	r, _ := newTestRunner(t, root, []string{"iso-a", "iso-b"}, eng)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, eng.calls, 2)
	assert.True(t, eng.calls[0].hadFooStep)
	assert.False(t, eng.calls[1].hadFooStep, "iso-a's step must not leak into iso-b")
}

func TestNoPathsRunsEveryArea(t *testing.T) {
	root := makeFeatures(t, map[string][]string{
		"areaA": {"a.feature"},
		"areaB": {"b.feature"},
	})
	eng := &fakeEngine{}
	r, _ := newTestRunner(t, root, nil, eng)

	failed, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, failed)
	assert.Len(t, eng.calls, 2)
}

func TestFeaturesRootItselfIsInvalidTarget(t *testing.T) {
	root := makeFeatures(t, map[string][]string{"areaA": {"a.feature"}})
	eng := &fakeEngine{}
	r, _ := newTestRunner(t, root, []string{root}, eng)

	failed, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, failed)
	assert.True(t, config.IsError(err))
	assert.Empty(t, eng.calls)
}

func TestNoFeatureFilesIsFatal(t *testing.T) {
	root := t.TempDir()
	eng := &fakeEngine{}
	r, _ := newTestRunner(t, root, nil, eng)

	failed, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, failed)
	assert.True(t, config.IsError(err))
}

func TestPathsAndBaseDirRestoredAfterRun(t *testing.T) {
	root := makeFeatures(t, map[string][]string{"areaA": {"a1.feature"}})
	eng := &fakeEngine{}
	paths := []string{"areaA"}
	r, cfg := newTestRunner(t, root, paths, eng)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, paths, cfg.Paths)
	assert.Equal(t, root, cfg.BaseDir)
	require.Len(t, eng.calls, 1)
	assert.Equal(t, filepath.Join(root, "areaA"), eng.calls[0].baseDir,
		"the engine saw the area's directory while the run was in flight")
}

type countingFormatter struct{ closed int }

func (f *countingFormatter) Name() string { return "counting" }
func (f *countingFormatter) Close() error { f.closed++; return nil }

type countingReporter struct{ ended int }

func (r *countingReporter) Scenario(engine.ScenarioResult) {}
func (r *countingReporter) End()                           { r.ended++ }

func TestFinalizersRunExactlyOnce(t *testing.T) {
	root := makeFeatures(t, map[string][]string{
		"a": {"a.feature"},
		"b": {"b.feature"},
	})
	eng := &fakeEngine{}
	r, cfg := newTestRunner(t, root, []string{"a", "b"}, eng)

	cf := &countingFormatter{}
	cr := &countingReporter{}
	cfg.Formatters = []*wrapper.FormatterWrapper{wrapper.WrapFormatter(cf)}
	cfg.Reporters = []*wrapper.ReporterWrapper{wrapper.WrapReporter(cr)}

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cf.closed)
	assert.Equal(t, 1, cr.ended)
}
