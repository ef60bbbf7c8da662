package suite

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strings"

	"github.com/sirlabs/systest/version"
)

// Constraint is one version specifier clause (e.g. ">=2.0.1").
type Constraint struct {
	Op      string
	Version string
}

// Marker is an environment marker restricting where a requirement applies
// (e.g. `sys_platform == "linux"`).
type Marker struct {
	Key   string
	Op    string
	Value string
}

// Requirement is one parsed requirements.txt line: a package name, an
// optional comma-separated constraint set and an optional marker.
type Requirement struct {
	Name        string
	Constraints []Constraint
	Marker      *Marker
}

var (
	namePattern       = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*`)
	markerPattern     = regexp.MustCompile(`^\s*([a-z_]+)\s*(==|!=)\s*"([^"]*)"\s*$`)
	canonicalReplacer = strings.NewReplacer("-", "_", ".", "_")
	constraintOps     = []string{"==", "!=", ">=", "<=", "~=", ">", "<"}
)

// CanonicalName folds a package name the way installers do: lower-cased,
// with '-' and '.' treated as '_'.
func CanonicalName(name string) string {
	return canonicalReplacer.Replace(strings.ToLower(name))
}

// ParseRequirement parses a single requirement specifier line.
func ParseRequirement(line string) (Requirement, error) {
	var req Requirement

	spec := line
	if i := strings.Index(line, ";"); i >= 0 {
		spec = line[:i]
		marker, err := parseMarker(line[i+1:])
		if err != nil {
			return req, fmt.Errorf("invalid marker in requirement %q: %w", line, err)
		}
		req.Marker = marker
	}

	spec = strings.TrimSpace(spec)
	name := namePattern.FindString(spec)
	if name == "" {
		return req, fmt.Errorf("invalid requirement specifier %q", line)
	}
	req.Name = name

	rest := strings.TrimSpace(spec[len(name):])
	if rest == "" {
		return req, nil
	}

	for _, clause := range strings.Split(rest, ",") {
		clause = strings.TrimSpace(clause)
		constraint, err := parseConstraint(clause)
		if err != nil {
			return req, fmt.Errorf("invalid requirement specifier %q: %w", line, err)
		}
		req.Constraints = append(req.Constraints, constraint)
	}
	return req, nil
}

func parseConstraint(clause string) (Constraint, error) {
	for _, op := range constraintOps {
		if strings.HasPrefix(clause, op) {
			v := strings.TrimSpace(strings.TrimPrefix(clause, op))
			if err := version.Validate(v); err != nil {
				return Constraint{}, err
			}
			return Constraint{Op: op, Version: v}, nil
		}
	}
	return Constraint{}, fmt.Errorf("unknown version operator in %q", clause)
}

func parseMarker(s string) (*Marker, error) {
	m := markerPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("unsupported marker expression %q", strings.TrimSpace(s))
	}
	return &Marker{Key: m[1], Op: m[2], Value: m[3]}, nil
}

// Evaluate resolves the marker against the running environment. A false
// result means the requirement does not apply here.
func (m *Marker) Evaluate() (bool, error) {
	fact, err := markerFact(m.Key)
	if err != nil {
		return false, err
	}
	if m.Op == "!=" {
		return fact != m.Value, nil
	}
	return fact == m.Value, nil
}

func markerFact(key string) (string, error) {
	switch key {
	case "os_name":
		if runtime.GOOS == "windows" {
			return "nt", nil
		}
		return "posix", nil
	case "sys_platform":
		if runtime.GOOS == "windows" {
			return "win32", nil
		}
		return runtime.GOOS, nil
	case "platform_machine":
		switch runtime.GOARCH {
		case "amd64":
			return "x86_64", nil
		case "arm64":
			return "aarch64", nil
		case "386":
			return "i386", nil
		}
		return runtime.GOARCH, nil
	case "platform_system":
		switch runtime.GOOS {
		case "linux":
			return "Linux", nil
		case "darwin":
			return "Darwin", nil
		case "windows":
			return "Windows", nil
		}
		return runtime.GOOS, nil
	}
	return "", fmt.Errorf("unknown marker key %q", key)
}

// SatisfiedBy reports whether an installed version meets every constraint.
func (r Requirement) SatisfiedBy(installed string) (bool, error) {
	for _, c := range r.Constraints {
		ok, err := c.contains(installed)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (c Constraint) contains(installed string) (bool, error) {
	if c.Op == "~=" {
		return compatibleRelease(c.Version, installed)
	}
	ord, err := version.Compare(installed, c.Version)
	if err != nil {
		return false, err
	}
	switch c.Op {
	case "==":
		return ord == version.Equal, nil
	case "!=":
		return ord != version.Equal, nil
	case ">=":
		return ord != version.Less, nil
	case "<=":
		return ord != version.Greater, nil
	case ">":
		return ord == version.Greater, nil
	case "<":
		return ord == version.Less, nil
	}
	return false, fmt.Errorf("unknown version operator %q", c.Op)
}

// compatibleRelease implements the `~=` operator: at least the given
// version, below the next release of its second-most-specific component.
// "~=2.0.1" means >=2.0.1,<2.1.0 and "~=2.0" means >=2.0.0,<3.0.0.
func compatibleRelease(spec, installed string) (bool, error) {
	lower, err := version.Compare(installed, spec)
	if err != nil {
		return false, err
	}
	if lower == version.Less {
		return false, nil
	}

	release := spec
	if i := strings.IndexAny(release, "-+"); i >= 0 {
		release = release[:i]
	}
	var bound string
	if strings.Count(release, ".") >= 2 {
		bound, err = version.NextMinor(spec)
	} else {
		bound, err = version.NextMajor(spec)
	}
	if err != nil {
		return false, err
	}
	upper, err := version.Compare(installed, bound)
	if err != nil {
		return false, err
	}
	return upper == version.Less, nil
}

// ParseRequirementsFile yields the parsed requirements of a requirements
// file, skipping blank lines and '#' comments.
func ParseRequirementsFile(path string) ([]Requirement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reqs []Requirement
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		req, err := ParseRequirement(line)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, scanner.Err()
}
