// Package systest ties the configuration resolver, suite management,
// dependency installation and the feature-area runner into the CLI action.
package systest

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sirlabs/systest/config"
	"github.com/sirlabs/systest/engine"
	"github.com/sirlabs/systest/exitcodes"
	"github.com/sirlabs/systest/registry"
	"github.com/sirlabs/systest/runner"
	"github.com/sirlabs/systest/service"
	"github.com/sirlabs/systest/suite"
)

// RunVersionEnvVar communicates the active suite's declared framework
// version to test code reading it at runtime. It is set for the duration of
// the run and unset afterwards regardless of outcome.
const RunVersionEnvVar = "SYSTEST_RUN_VERSION"

// RunVersionFromEnv returns the framework version of the run in progress,
// or an empty string outside a run.
func RunVersionFromEnv() string {
	return os.Getenv(RunVersionEnvVar)
}

// Main builds the CLI action executing one systest invocation against the
// given engine.
func Main(eng engine.Engine, log *slog.Logger) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		cfg, err := config.New(ctx, eng, log)
		if err != nil {
			return err
		}

		if cfg.CreateSuiteName != "" {
			path, err := suite.Create(cfg.CreateSuiteName, cfg.SuitesDirectory)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "Created the test suite skeleton at %s\n", path)
			return nil
		}

		if cfg.UtilityMode() {
			handled, err := eng.Utility(cfg.Options, ctx.App.Writer)
			if err != nil {
				return err
			}
			if !handled {
				log.Warn("the engine did not recognize the requested utility action")
			}
			return nil
		}

		return run(ctx, cfg, eng)
	}
}

func run(ctx *cli.Context, cfg *config.Config, eng engine.Engine) error {
	log := cfg.Log
	log.Info("resolved test suite",
		"suite", cfg.SuiteData.Name,
		"path", cfg.SuiteData.Path,
		"frameworkVersion", cfg.RunVersion,
		"engine", fmt.Sprintf("%s %s", eng.Name(), eng.Version()))

	if err := suite.Install(ctx.Context, suite.InstallConfig{
		LibDir:           cfg.SuiteData.LibPath,
		RequirementsFile: cfg.SuiteData.RequirementsFile,
		Python:           cfg.PipBinary,
		Log:              log,
	}); err != nil {
		return err
	}

	os.Setenv(RunVersionEnvVar, cfg.RunVersion)
	defer os.Unsetenv(RunVersionEnvVar)

	if cfg.HealthzAddr != "" || cfg.MetricsAddr != "" {
		svc := service.New(cfg.HealthzAddr, cfg.MetricsAddr, log)
		svc.Start()
		defer svc.Shutdown(ctx.Context)
	}

	failed, err := runner.New(cfg, registry.New(log)).Run(ctx.Context)
	if err != nil {
		return err
	}
	if failed {
		return cli.Exit("the test run failed", exitcodes.Failure)
	}
	log.Info("test run passed", "run", cfg.RunID)
	return nil
}
