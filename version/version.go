// Package version provides semantic version comparison and
// difference classification for framework version checks.
package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Framework is the systest framework version. Overridable at build time
// via -ldflags "-X github.com/sirlabs/systest/version.Framework=...".
var Framework = "0.7.0"

// Ordering is the result of comparing two versions.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "LESS"
	case Greater:
		return "GREATER"
	default:
		return "EQUAL"
	}
}

// Diff is the semantic level of difference between two versions.
type Diff int

const (
	DiffNone Diff = iota
	DiffPatch
	DiffMinor
	DiffMajor
)

func (d Diff) String() string {
	switch d {
	case DiffMajor:
		return "MAJOR"
	case DiffMinor:
		return "MINOR"
	case DiffPatch:
		return "PATCH"
	default:
		return "NONE"
	}
}

// Canonical normalizes a version string to the canonical "vMAJOR.MINOR.PATCH"
// form understood by golang.org/x/mod/semver. Plain "1.2.3" is accepted.
func Canonical(v string) (string, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return "", fmt.Errorf("empty version string")
	}
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	if !semver.IsValid(s) {
		return "", fmt.Errorf("invalid semantic version %q", v)
	}
	return s, nil
}

// Validate reports whether v is a valid semantic version.
func Validate(v string) error {
	_, err := Canonical(v)
	return err
}

// Compare orders two version strings.
func Compare(v1, v2 string) (Ordering, error) {
	a, err := Canonical(v1)
	if err != nil {
		return Equal, err
	}
	b, err := Canonical(v2)
	if err != nil {
		return Equal, err
	}
	return Ordering(semver.Compare(a, b)), nil
}

// Difference classifies the highest semantic level at which two versions
// differ. Prerelease or build differences within the same patch level count
// as a patch difference.
func Difference(v1, v2 string) (Diff, error) {
	a, err := Canonical(v1)
	if err != nil {
		return DiffNone, err
	}
	b, err := Canonical(v2)
	if err != nil {
		return DiffNone, err
	}
	switch {
	case semver.Major(a) != semver.Major(b):
		return DiffMajor, nil
	case semver.MajorMinor(a) != semver.MajorMinor(b):
		return DiffMinor, nil
	case semver.Compare(a, b) != 0:
		return DiffPatch, nil
	}
	return DiffNone, nil
}

// components splits the numeric release components of a canonical version.
func components(canonical string) (major, minor string) {
	major = strings.TrimPrefix(semver.Major(canonical), "v")
	mm := strings.TrimPrefix(semver.MajorMinor(canonical), "v")
	if i := strings.IndexByte(mm, '.'); i >= 0 {
		minor = mm[i+1:]
	} else {
		minor = "0"
	}
	return major, minor
}

// NextMajor returns the smallest version greater than every version sharing
// v's major component (e.g. "2.1.3" -> "v3.0.0").
func NextMajor(v string) (string, error) {
	c, err := Canonical(v)
	if err != nil {
		return "", err
	}
	major, _ := components(c)
	var n int
	fmt.Sscanf(major, "%d", &n)
	return fmt.Sprintf("v%d.0.0", n+1), nil
}

// NextMinor returns the smallest version greater than every version sharing
// v's major.minor components (e.g. "2.1.3" -> "v2.2.0").
func NextMinor(v string) (string, error) {
	c, err := Canonical(v)
	if err != nil {
		return "", err
	}
	major, minor := components(c)
	var mj, mn int
	fmt.Sscanf(major, "%d", &mj)
	fmt.Sscanf(minor, "%d", &mn)
	return fmt.Sprintf("v%d.%d.0", mj, mn+1), nil
}
