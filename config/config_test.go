package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/sirlabs/systest/engine"
	"github.com/sirlabs/systest/registry"
)

type fakeFormatter struct{ name string }

func (f *fakeFormatter) Name() string { return f.name }
func (f *fakeFormatter) Close() error { return nil }

type fakeEngine struct{}

func (e *fakeEngine) Name() string    { return "fake" }
func (e *fakeEngine) Version() string { return "0.0.0" }

func (e *fakeEngine) Formatters(opts engine.Options) ([]engine.Formatter, error) {
	return []engine.Formatter{&fakeFormatter{name: "pretty"}}, nil
}

func (e *fakeEngine) RunArea(ctx context.Context, opts engine.Options, area string, baseDir string,
	locations []engine.FileLocation, reg *registry.Registry, reporters []engine.Reporter) (engine.RunResult, error) {
	return engine.RunResult{}, nil
}

func (e *fakeEngine) Utility(opts engine.Options, w io.Writer) (bool, error) {
	return false, nil
}

// parseConfig runs the resolver the way the CLI entrypoint does: through a
// single parser over the flag union.
func parseConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var cfg *Config
	var cfgErr error
	app := &cli.App{
		Name:  "systest",
		Flags: FlagUnion(engine.CLIFlags()),
		Action: func(ctx *cli.Context) error {
			cfg, cfgErr = New(ctx, &fakeEngine{}, slog.Default())
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"systest"}, args...)))
	return cfg, cfgErr
}

func writeSuite(t *testing.T, suitesDir, name string) string {
	t.Helper()
	path := filepath.Join(suitesDir, name+"_suite")
	require.NoError(t, os.MkdirAll(filepath.Join(path, "features"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "support"), 0o755))
	return path
}

func TestScalarPrecedenceCLIWins(t *testing.T) {
	t.Setenv("SYSTEST_LANG", "de")

	configFile := filepath.Join(t.TempDir(), "extra.env")
	require.NoError(t, os.WriteFile(configFile, []byte("SYSTEST_LANG=fr\n"), 0o644))

	cfg, err := parseConfig(t, "--tags-help", "--config", configFile, "--lang", "it")
	require.NoError(t, err)
	assert.Equal(t, "it", cfg.Options.Language)

	cfg, err = parseConfig(t, "--tags-help", "--config", configFile)
	require.NoError(t, err)
	assert.Equal(t, "fr", cfg.Options.Language, "the explicit config file outranks the OS environment")

	cfg, err = parseConfig(t, "--tags-help")
	require.NoError(t, err)
	assert.Equal(t, "de", cfg.Options.Language)
}

func TestSequencePrecedenceCLIPrepends(t *testing.T) {
	t.Setenv("SYSTEST_TAGS", "@env1 @env2")

	configFile := filepath.Join(t.TempDir(), "extra.env")
	require.NoError(t, os.WriteFile(configFile, []byte(`SYSTEST_TAGS="@file1 @file2"`+"\n"), 0o644))

	cfg, err := parseConfig(t, "--tags-help", "--config", configFile, "--tags", "@cli")
	require.NoError(t, err)
	assert.Equal(t, []string{"@cli", "@file1", "@file2"}, cfg.Options.Tags)

	cfg, err = parseConfig(t, "--tags-help")
	require.NoError(t, err)
	assert.Equal(t, []string{"@env1", "@env2"}, cfg.Options.Tags)
}

func TestExcludedSettingsRejectedFromEnvironment(t *testing.T) {
	for _, name := range []string{"SUITE", "CONFIG", "VERBOSE", "TAGS_HELP", "CREATE_SUITE_NAME"} {
		t.Run(name, func(t *testing.T) {
			t.Setenv("SYSTEST_"+name, "anything")
			_, err := parseConfig(t, "--tags-help")
			require.Error(t, err)
			assert.True(t, IsError(err))
		})
	}
}

func TestEmptyNamespacedValuesAreSkipped(t *testing.T) {
	t.Setenv("SYSTEST_TAGS", "   ")
	cfg, err := parseConfig(t, "--tags-help")
	require.NoError(t, err)
	assert.Empty(t, cfg.Options.Tags)
}

func TestMissingExplicitConfigFileIsFatal(t *testing.T) {
	_, err := parseConfig(t, "--tags-help", "--config", filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)
	assert.True(t, IsError(err))
}

func TestLangHelpIsUtilityMode(t *testing.T) {
	cfg, err := parseConfig(t, "--lang", "help")
	require.NoError(t, err, "'help' as a language must not demand a suite")
	assert.True(t, cfg.UtilityMode())
}

func TestSuiteRequiredOutsideUtilityMode(t *testing.T) {
	_, err := parseConfig(t, "--suites-dir", t.TempDir())
	require.Error(t, err)
	assert.True(t, IsError(err))
	assert.Contains(t, err.Error(), "suite")
}

func TestSuiteValidationNamesMissingFeaturesFirst(t *testing.T) {
	suitesDir := t.TempDir()
	path := writeSuite(t, suitesDir, "mock")
	require.NoError(t, os.RemoveAll(filepath.Join(path, "features")))
	require.NoError(t, os.RemoveAll(filepath.Join(path, "support")))

	_, err := parseConfig(t, "--suites-dir", suitesDir, "-s", "mock")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "features")
	assert.NotContains(t, err.Error(), "support")
}

func TestSuiteValidationChecksSupport(t *testing.T) {
	suitesDir := t.TempDir()
	path := writeSuite(t, suitesDir, "mock")
	require.NoError(t, os.RemoveAll(filepath.Join(path, "support")))

	_, err := parseConfig(t, "--suites-dir", suitesDir, "-s", "mock")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "support")
}

func TestValidSuiteResolvesAndWires(t *testing.T) {
	suitesDir := t.TempDir()
	writeSuite(t, suitesDir, "mock")

	cfg, err := parseConfig(t, "--suites-dir", suitesDir, "-s", "mock", "--cycle-id", "SIR-R3")
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.SuiteData.Name)
	assert.NotEmpty(t, cfg.RunVersion)
	assert.Equal(t, cfg.SuiteData.FeaturesPath, cfg.BaseDir)
	assert.NotEmpty(t, cfg.RunID)

	require.Len(t, cfg.Formatters, 1)
	assert.Equal(t, "pretty", cfg.Formatters[0].Name())
	assert.Len(t, cfg.Reporters, 2, "metrics plus the cycle reporter")
}

func TestInvalidFrameworkVersionIsFatal(t *testing.T) {
	suitesDir := t.TempDir()
	path := writeSuite(t, suitesDir, "mock")
	require.NoError(t, os.WriteFile(filepath.Join(path, "suite.conf"),
		[]byte("framework_version=not-a-version\n"), 0o644))

	_, err := parseConfig(t, "--suites-dir", suitesDir, "-s", "mock")
	require.Error(t, err)
	assert.True(t, IsError(err))
}

func TestSuiteEnvFileParticipatesInLayering(t *testing.T) {
	t.Setenv("SYSTEST_LANG", "de")
	suitesDir := t.TempDir()
	path := writeSuite(t, suitesDir, "mock")
	require.NoError(t, os.WriteFile(filepath.Join(path, ".env"),
		[]byte("SYSTEST_LANG=ja\n"), 0o644))

	cfg, err := parseConfig(t, "--suites-dir", suitesDir, "-s", "mock")
	require.NoError(t, err)
	assert.Equal(t, "ja", cfg.Options.Language)
}

func TestCreateSuiteRefusesExistingTarget(t *testing.T) {
	suitesDir := t.TempDir()
	writeSuite(t, suitesDir, "mock")

	_, err := parseConfig(t, "--suites-dir", suitesDir, "--create-suite", "mock")
	require.Error(t, err)

	cfg, err := parseConfig(t, "--suites-dir", suitesDir, "--create-suite", "fresh")
	require.NoError(t, err)
	assert.True(t, cfg.UtilityMode())
}

func TestUserDataMergesCLIAndEnvironment(t *testing.T) {
	t.Setenv("SYSTEST_USERDATA_DEFINES", "env_key=env_value")

	cfg, err := parseConfig(t, "--tags-help", "-D", "cli_key=cli_value")
	require.NoError(t, err)
	require.Len(t, cfg.Options.UserData, 2)
	assert.Equal(t, engine.KV{Key: "cli_key", Value: "cli_value"}, cfg.Options.UserData[0])
	assert.Equal(t, engine.KV{Key: "env_key", Value: "env_value"}, cfg.Options.UserData[1])
}

func TestFlagUnionDropsCollidingEngineFlags(t *testing.T) {
	engineFlags := []cli.Flag{
		&cli.StringFlag{Name: "suite"},
		&cli.BoolFlag{Name: "engine-only"},
	}

	union := FlagUnion(engineFlags)
	names := make(map[string]int)
	for _, flag := range union {
		for _, name := range flag.Names() {
			names[name]++
		}
	}
	assert.Equal(t, 1, names["suite"], "systest wins the collision")
	assert.Equal(t, 1, names["engine-only"])
}
