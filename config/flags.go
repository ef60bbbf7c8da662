package config

import (
	"github.com/urfave/cli/v2"

	"github.com/sirlabs/systest/flags"
)

// FlagUnion merges the systest-owned flags with the engine's flag surface
// into the single set one parser validates and documents. An engine flag
// sharing any name or alias with a systest flag is dropped from the union.
func FlagUnion(engineFlags []cli.Flag) []cli.Flag {
	owned := make(map[string]bool)
	for _, flag := range flags.Systest {
		for _, name := range flag.Names() {
			owned[name] = true
		}
	}

	union := make([]cli.Flag, 0, len(flags.Systest)+len(engineFlags))
	union = append(union, flags.Systest...)
	for _, flag := range engineFlags {
		if collides(flag, owned) {
			continue
		}
		union = append(union, flag)
	}
	return union
}

func collides(flag cli.Flag, owned map[string]bool) bool {
	for _, name := range flag.Names() {
		if owned[name] {
			return true
		}
	}
	return false
}
