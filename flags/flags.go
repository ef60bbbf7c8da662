package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// EnvVarPrefix is the namespace prefix for configuration supplied through
// environment variables and config files (e.g. SYSTEST_TAGS).
const EnvVarPrefix = "SYSTEST"

// PrefixEnvVar prefixes a setting name with the systest namespace.
func PrefixEnvVar(prefix, suffix string) string {
	return fmt.Sprintf("%s_%s", prefix, suffix)
}

// Systest-owned flags. None of them declare EnvVars: the layered
// configuration resolver owns environment handling so that variables keep
// their place in the precedence chain instead of masquerading as CLI input.
var (
	Suite = &cli.StringFlag{
		Name:    "suite",
		Aliases: []string{"s"},
		Usage:   "The test suite to execute (e.g. 'mock', 'r2d2-3.2.1')",
	}
	SuitesDir = &cli.StringFlag{
		Name:  "suites-dir",
		Usage: "The directory containing all test suite folders",
	}
	CreateSuite = &cli.StringFlag{
		Name:  "create-suite",
		Usage: "Create a new test suite directory structure, named by the argument, and exit",
	}
	CycleID = &cli.StringFlag{
		Name:  "cycle-id",
		Usage: "Zephyr test cycle id/key (e.g. 'SIR-R3'); enables test-management reporting",
	}
	CycleOut = &cli.StringFlag{
		Name:  "cycle-out",
		Usage: "Write the test-management cycle results to this YAML file",
	}
	ConfigFile = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to an additional configuration file (highest file precedence)",
	}
	Verbose = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable verbose diagnostics",
	}
	PipBinary = &cli.StringFlag{
		Name:  "pip-binary",
		Value: "python3",
		Usage: "Python interpreter used to invoke pip for suite dependency installation",
	}
	HealthzAddr = &cli.StringFlag{
		Name:  "healthz-addr",
		Usage: "Listen address for the healthz server (disabled when empty)",
	}
	MetricsAddr = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "Listen address for the Prometheus metrics server (disabled when empty)",
	}
)

// Systest is the set of flags owned by systest itself. Everything else on
// the command line belongs to the underlying BDD engine.
var Systest = []cli.Flag{
	Suite,
	SuitesDir,
	CreateSuite,
	CycleID,
	CycleOut,
	ConfigFile,
	Verbose,
	PipBinary,
	HealthzAddr,
	MetricsAddr,
}
