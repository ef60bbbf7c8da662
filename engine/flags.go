package engine

import "github.com/urfave/cli/v2"

// CLIFlags is the engine-facing flag surface. The configuration layer
// merges these with the systest-owned flags into a single parser; any
// engine flag whose name collides with a systest flag is dropped from the
// union (systest wins collisions).
func CLIFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Formatter to use ('help' lists the available ones)",
		},
		&cli.StringSliceFlag{
			Name:    "outfile",
			Aliases: []string{"o"},
			Usage:   "Write formatter output to this file instead of stdout",
		},
		&cli.StringSliceFlag{
			Name:    "tags",
			Aliases: []string{"t"},
			Usage:   "Only execute features/scenarios matching the tag expression",
		},
		&cli.StringSliceFlag{
			Name:  "name",
			Usage: "Only execute features/scenarios matching the name pattern",
		},
		&cli.StringSliceFlag{
			Name:    "define",
			Aliases: []string{"D"},
			Usage:   "Define user data (name=value) available to hooks and steps",
		},
		&cli.StringFlag{
			Name:  "lang",
			Value: "en",
			Usage: "Feature file language ('help' lists the available ones)",
		},
		&cli.BoolFlag{
			Name:  "lang-list",
			Usage: "List the supported feature file languages and exit",
		},
		&cli.StringFlag{
			Name:  "lang-help",
			Usage: "Show the keywords of a feature file language and exit",
		},
		&cli.BoolFlag{
			Name:  "tags-help",
			Usage: "Show help for tag expressions and exit",
		},
		&cli.BoolFlag{
			Name:  "stop",
			Usage: "Stop running tests at the first failure",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Parse and match steps without executing them",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable colored output",
		},
		&cli.IntFlag{
			Name:  "jobs",
			Usage: "Number of workers the engine may use within an area",
		},
		&cli.BoolFlag{
			Name:  "nested-steps",
			Usage: "Also activate step modules registered under nested area keys",
		},
	}
}
