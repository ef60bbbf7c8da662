package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	systest "github.com/sirlabs/systest"
	"github.com/sirlabs/systest/config"
	"github.com/sirlabs/systest/engine"
	"github.com/sirlabs/systest/engine/godogengine"
	"github.com/sirlabs/systest/exitcodes"
	"github.com/sirlabs/systest/flags"
	"github.com/sirlabs/systest/suite"
	"github.com/sirlabs/systest/version"
)

func main() {
	levelVar := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	eng := godogengine.New(logger)

	app := cli.NewApp()
	app.Name = "systest"
	app.Usage = "Run a named feature-file test suite"
	app.Version = version.Framework
	app.UsageText = `systest -s SUITE [options] [paths...]

Examples:
   systest -s mock                       run the whole mock suite
   systest -s mock areaA areaB/x.feature run selected areas/files
   systest -s mock areaB/x.feature:12    run the scenario at line 12
   systest --create-suite r2d2-4.0.0     scaffold a new suite and exit`
	app.Flags = config.FlagUnion(engine.CLIFlags())
	app.Before = func(ctx *cli.Context) error {
		if ctx.Bool(flags.Verbose.Name) {
			levelVar.Set(slog.LevelDebug)
		}
		return nil
	}
	app.Action = systest.Main(eng, logger)

	cli.VersionPrinter = func(ctx *cli.Context) {
		fmt.Fprintf(ctx.App.Writer, "systest %s & %s %s\n",
			version.Framework, eng.Name(), eng.Version())
	}

	// Configuration, suite and installer errors are anticipated user-facing
	// conditions and get a clean single diagnostic. Anything else is
	// unexpected and reported in full.
	app.ExitErrHandler = func(c *cli.Context, err error) {
		if err == nil {
			return
		}
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
			return
		}
		if config.IsError(err) || suite.IsError(err) || suite.IsInstallerError(err) {
			cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.Failure))
			return
		}
		logger.Error("unexpected failure", "err", err)
		cli.HandleExitCoder(cli.Exit(fmt.Sprintf("unexpected failure: %+v", err), exitcodes.Failure))
	}

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		logger.Warn("telemetry disabled", "err", err)
	} else {
		defer otelShutdown()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		os.Exit(exitcodes.Failure)
	}
}
