// Package config resolves the effective configuration from its layered
// sources and validates it before anything runs. Precedence, ascending: OS
// environment, user home config, project config (source builds only), the
// suite's .env, the file named by --config, and finally the CLI flags. CLI
// values overwrite scalar settings and are prepended to sequence settings.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/sirlabs/systest/engine"
	"github.com/sirlabs/systest/flags"
	"github.com/sirlabs/systest/reporter"
	"github.com/sirlabs/systest/suite"
	"github.com/sirlabs/systest/version"
	"github.com/sirlabs/systest/wrapper"
)

// DefaultSuitesDir is used when neither the CLI nor any configuration
// source names a suites root.
const DefaultSuitesDir = "."

// Config is the effective configuration the run executes against.
type Config struct {
	Log    *slog.Logger
	Engine engine.Engine

	Suite           string
	SuitesDirectory string
	CreateSuiteName string
	ConfigFile      string
	CycleID         string
	CycleOut        string
	PipBinary       string
	HealthzAddr     string
	MetricsAddr     string
	Verbose         bool

	// Options is the engine-facing slice of the configuration.
	Options engine.Options

	// Paths holds the positional path specifiers and BaseDir the directory
	// the engine resolves against. The runner re-points both once per
	// feature area and restores them when the run completes.
	Paths   []string
	BaseDir string

	RunID      string
	RunVersion string
	SuiteData  suite.Data

	Formatters []*wrapper.FormatterWrapper
	Reporters  []*wrapper.ReporterWrapper
}

// New resolves, validates and wires the configuration for one run.
func New(ctx *cli.Context, eng engine.Engine, log *slog.Logger) (*Config, error) {
	if log == nil {
		log = slog.Default()
	}

	configFile := ctx.String(flags.ConfigFile.Name)

	// The suite's own .env participates in the layering, so the suite has
	// to be located from the lower-precedence sources first.
	preValues, err := BuildEnvironmentValues("", configFile, log)
	if err != nil {
		return nil, err
	}
	preSettings, err := LoadEnvironmentSettings(preValues, log)
	if err != nil {
		return nil, err
	}
	pre := resolver{ctx: ctx, settings: preSettings}
	suitesDir := pre.str(flags.SuitesDir.Name, "suites_dir")
	if suitesDir == "" {
		suitesDir = DefaultSuitesDir
	}

	suiteName := ctx.String(flags.Suite.Name)
	suiteEnvFile := ""
	if suiteName != "" {
		data, err := suite.Locate(suiteName, suitesDir)
		if err != nil {
			return nil, err
		}
		if data.Exists() {
			suiteEnvFile = data.EnvFile
		}
	}

	values, err := BuildEnvironmentValues(suiteEnvFile, configFile, log)
	if err != nil {
		return nil, err
	}
	settings, err := LoadEnvironmentSettings(values, log)
	if err != nil {
		return nil, err
	}
	r := resolver{ctx: ctx, settings: settings}

	userData := parseUserData(ctx.StringSlice("define"))
	if envDefs, ok := settings.UserData(); ok {
		userData = append(userData, envDefs...)
	}

	cfg := &Config{
		Log:    log,
		Engine: eng,

		Suite:           suiteName,
		SuitesDirectory: suitesDir,
		CreateSuiteName: ctx.String(flags.CreateSuite.Name),
		ConfigFile:      configFile,
		CycleID:         r.str(flags.CycleID.Name, "cycle_id"),
		CycleOut:        r.str(flags.CycleOut.Name, "cycle_out"),
		PipBinary:       r.str(flags.PipBinary.Name, "pip_binary"),
		HealthzAddr:     r.str(flags.HealthzAddr.Name, "healthz_addr"),
		MetricsAddr:     r.str(flags.MetricsAddr.Name, "metrics_addr"),
		Verbose:         ctx.Bool(flags.Verbose.Name),

		Options: engine.Options{
			Formats:       r.sequence("format", "format"),
			Outfiles:      r.sequence("outfile", "outfiles"),
			Tags:          r.sequence("tags", "tags"),
			Names:         r.sequence("name", "name"),
			UserData:      userData,
			Language:      r.str("lang", "lang"),
			Jobs:          r.integer("jobs", "jobs"),
			StopOnFailure: r.boolean("stop", "stop"),
			DryRun:        r.boolean("dry-run", "dry_run"),
			NoColor:       r.boolean("no-color", "no_color"),
			NestedSteps:   r.boolean("nested-steps", "nested_steps"),
			Verbose:       ctx.Bool(flags.Verbose.Name),

			TagsHelp: ctx.Bool("tags-help"),
			LangList: ctx.Bool("lang-list"),
			LangHelp: ctx.String("lang-help"),
		},

		RunID: uuid.New().String(),
	}

	cfg.Paths = append(append([]string{}, ctx.Args().Slice()...), r.envSequence("paths")...)

	if err := cfg.check(ctx); err != nil {
		return nil, err
	}

	if !cfg.UtilityMode() {
		if err := cfg.wire(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// UtilityMode reports whether the invocation performs a utility action that
// bypasses suite resolution and test execution.
func (c *Config) UtilityMode() bool {
	return c.CreateSuiteName != "" ||
		c.Options.TagsHelp ||
		c.Options.LangList ||
		c.Options.LangHelp != "" ||
		c.Options.Language == "help" ||
		formatHelpRequested(c.Options.Formats)
}

func formatHelpRequested(formats []string) bool {
	for _, f := range formats {
		if f == "help" {
			return true
		}
	}
	return false
}

// check runs the ordered validation sequence. Each step may fail fatally
// and short-circuits the rest.
func (c *Config) check(ctx *cli.Context) error {
	info, err := os.Stat(c.SuitesDirectory)
	if err != nil || !info.IsDir() {
		return NewErrorf("the suites directory %q does not exist", c.SuitesDirectory)
	}

	if ctx.IsSet(flags.CreateSuite.Name) {
		if c.CreateSuiteName == "" {
			return NewError(fmt.Errorf("--%s requires a non-empty suite name", flags.CreateSuite.Name))
		}
		data, err := suite.Locate(c.CreateSuiteName, c.SuitesDirectory)
		if err != nil {
			return err
		}
		if data.Exists() {
			return suite.NewErrorf("the test suite %q already exists at %s", data.Name, data.Path)
		}
		return nil
	}

	if c.UtilityMode() {
		return nil
	}

	if c.Suite == "" {
		return NewError(fmt.Errorf("a test suite must be specified (-s/--suite)"))
	}
	data, err := suite.Locate(c.Suite, c.SuitesDirectory)
	if err != nil {
		return err
	}
	if !data.Exists() {
		return NewErrorf("the test suite %q was not found at %s", data.Name, data.Path)
	}
	if info, err := os.Stat(data.FeaturesPath); err != nil || !info.IsDir() {
		return NewErrorf("the test suite %q has no features directory at %s", data.Name, data.FeaturesPath)
	}
	if info, err := os.Stat(data.SupportPath); err != nil || !info.IsDir() {
		return NewErrorf("the test suite %q has no support directory at %s", data.Name, data.SupportPath)
	}

	if err := version.Validate(data.FrameworkVersion); err != nil {
		return NewErrorf("the test suite %q declares an invalid framework version %q",
			data.Name, data.FrameworkVersion)
	}

	c.SuiteData = *data
	c.RunVersion = data.FrameworkVersion
	c.BaseDir = data.FeaturesPath
	return nil
}

// wire opens the engine's formatters, assembles the reporter list and wraps
// both so their finalization is deferred to the end of the run.
func (c *Config) wire() error {
	formatters, err := c.Engine.Formatters(c.Options)
	if err != nil {
		return err
	}
	for _, f := range formatters {
		c.Formatters = append(c.Formatters, wrapper.WrapFormatter(f))
	}

	reporters := []engine.Reporter{reporter.NewMetrics(c.RunID, c.Suite)}
	if c.CycleID != "" {
		reporters = append(reporters, reporter.NewZephyr(c.RunID, c.CycleID, c.CycleOut, os.Stdout, c.Log))
	}
	for _, rep := range reporters {
		c.Reporters = append(c.Reporters, wrapper.WrapReporter(rep))
	}
	return nil
}

// EngineReporters exposes the wrapped reporters as the engine-facing slice.
func (c *Config) EngineReporters() []engine.Reporter {
	reporters := make([]engine.Reporter, len(c.Reporters))
	for i, r := range c.Reporters {
		reporters[i] = r
	}
	return reporters
}

// resolver merges one setting from its CLI flag and its namespaced
// environment form. CLI wins scalars; sequences get the CLI values
// prepended to the environment values.
type resolver struct {
	ctx      *cli.Context
	settings Settings
}

func (r resolver) str(flagName, setting string) string {
	if r.ctx.IsSet(flagName) {
		return r.ctx.String(flagName)
	}
	if v, ok := r.settings[setting]; ok {
		if s, isString := v.(string); isString {
			return s
		}
		// Coercion typed the value (e.g. a numeric cycle id); render it back.
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return r.ctx.String(flagName)
}

func (r resolver) boolean(flagName, setting string) bool {
	if r.ctx.IsSet(flagName) {
		return r.ctx.Bool(flagName)
	}
	if v, ok := r.settings.Bool(setting); ok {
		return v
	}
	return r.ctx.Bool(flagName)
}

func (r resolver) integer(flagName, setting string) int {
	if r.ctx.IsSet(flagName) {
		return r.ctx.Int(flagName)
	}
	if v, ok := r.settings.Int(setting); ok {
		return v
	}
	return r.ctx.Int(flagName)
}

func (r resolver) sequence(flagName, setting string) []string {
	return append(append([]string{}, r.ctx.StringSlice(flagName)...), r.envSequence(setting)...)
}

func (r resolver) envSequence(setting string) []string {
	if v, ok := r.settings.Sequence(setting); ok {
		return v
	}
	// A single-token sequence may have been coerced to a scalar first.
	if v, ok := r.settings.String(setting); ok {
		return []string{v}
	}
	return nil
}
