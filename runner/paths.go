package runner

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirlabs/systest/config"
	"github.com/sirlabs/systest/engine"
)

// listFilePrefix marks a specifier naming a file of further specifiers.
const listFilePrefix = "@"

// AreaGroup is one feature area's resolved file locations, sorted by path
// then line.
type AreaGroup struct {
	Area      string
	Locations []engine.FileLocation
}

// specifier is one path target after syntactic parsing: the path portion
// and the optional line number split off its suffix.
type specifier struct {
	path string
	line int
}

// parseSpecifier splits an optional line-number suffix off a path
// specifier. The split happens on the last colon; the trailing segment
// must then be a non-negative integer or the specifier is malformed.
func parseSpecifier(raw string) (specifier, error) {
	i := strings.LastIndex(raw, ":")
	if i < 0 {
		return specifier{path: raw}, nil
	}
	path, suffix := raw[:i], raw[i+1:]

	line, err := strconv.Atoi(suffix)
	if err != nil {
		return specifier{}, config.NewErrorf("malformed path specifier %q: %q is not a line number", raw, suffix)
	}
	if line < 0 {
		return specifier{}, config.NewErrorf("malformed path specifier %q: negative line number %d", raw, line)
	}
	return specifier{path: path, line: line}, nil
}

// resolvePaths expands the positional path specifiers against the features
// root into per-area groups, in first-encounter area order with each
// group's locations sorted by path then line.
func (r *Runner) resolvePaths(specifiers []string, featuresRoot string) ([]AreaGroup, error) {
	root, err := filepath.Abs(featuresRoot)
	if err != nil {
		return nil, err
	}

	if len(specifiers) == 0 {
		specifiers = []string{"*"}
	}

	var locations []engine.FileLocation
	for _, raw := range specifiers {
		resolved, err := r.resolveSpecifier(raw, root)
		if err != nil {
			return nil, err
		}
		locations = append(locations, resolved...)
	}

	return groupByArea(dedupe(locations), root), nil
}

func (r *Runner) resolveSpecifier(raw string, root string) ([]engine.FileLocation, error) {
	if name, found := strings.CutPrefix(raw, listFilePrefix); found {
		return r.resolveListFile(name, root)
	}

	spec, err := parseSpecifier(raw)
	if err != nil {
		return nil, err
	}

	paths, err := expandPath(spec.path, root)
	if err != nil {
		return nil, err
	}

	var locations []engine.FileLocation
	for _, path := range paths {
		resolved, err := r.resolveTarget(path, spec.line, root)
		if err != nil {
			return nil, err
		}
		locations = append(locations, resolved...)
	}
	return locations, nil
}

// resolveListFile reads a list-file of further specifiers, skipping blanks
// and comment lines.
func (r *Runner) resolveListFile(name string, root string) ([]engine.FileLocation, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, config.NewErrorf("failed to read the path list file %q: %v", name, err)
	}
	defer f.Close()

	var locations []engine.FileLocation
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		resolved, err := r.resolveSpecifier(line, root)
		if err != nil {
			return nil, err
		}
		locations = append(locations, resolved...)
	}
	return locations, scanner.Err()
}

// expandPath turns the path portion of a specifier into absolute
// filesystem paths. Globs are expanded relative to the features root (or
// the filesystem root for absolute specifiers); plain paths resolve
// without an existence check here.
func expandPath(path string, root string) ([]string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, path)
	}

	if !strings.ContainsAny(path, "*?[") {
		return []string{abs}, nil
	}

	matches, err := filepath.Glob(abs)
	if err != nil {
		return nil, config.NewErrorf("malformed glob pattern %q: %v", path, err)
	}
	return matches, nil
}

// resolveTarget filters and expands one absolute path: missing paths are
// skipped with a diagnostic, paths escaping the features root are fatal,
// directories expand to their immediate feature files, non-feature files
// are discarded. The specifier's line number is inherited by every
// resulting location, including all files of an expanded directory.
func (r *Runner) resolveTarget(path string, line int, root string) ([]engine.FileLocation, error) {
	info, err := os.Stat(path)
	if err != nil {
		r.log.Warn("skipping path, it does not exist", "path", path)
		return nil, nil
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, config.NewErrorf("the path %q is outside the features directory %q", path, root)
	}
	if rel == "." {
		return nil, config.NewErrorf("the features directory %q itself is not a valid path target", root)
	}

	if info.IsDir() {
		matches, err := filepath.Glob(filepath.Join(path, "*.feature"))
		if err != nil {
			return nil, err
		}
		locations := make([]engine.FileLocation, 0, len(matches))
		for _, m := range matches {
			locations = append(locations, engine.FileLocation{Path: m, Line: line})
		}
		return locations, nil
	}

	if !strings.HasSuffix(path, ".feature") {
		r.log.Debug("skipping path, not a feature file", "path", path)
		return nil, nil
	}
	return []engine.FileLocation{{Path: path, Line: line}}, nil
}

func dedupe(locations []engine.FileLocation) []engine.FileLocation {
	seen := make(map[engine.FileLocation]bool, len(locations))
	result := locations[:0]
	for _, loc := range locations {
		if seen[loc] {
			continue
		}
		seen[loc] = true
		result = append(result, loc)
	}
	return result
}

// groupByArea partitions locations by their first path segment under the
// features root. Areas keep first-encounter order; each group is sorted by
// path then line. Files sitting directly in the root group under ".".
func groupByArea(locations []engine.FileLocation, root string) []AreaGroup {
	var order []string
	groups := make(map[string][]engine.FileLocation)

	for _, loc := range locations {
		area := areaOf(loc.Path, root)
		if _, seen := groups[area]; !seen {
			order = append(order, area)
		}
		groups[area] = append(groups[area], loc)
	}

	result := make([]AreaGroup, 0, len(order))
	for _, area := range order {
		group := groups[area]
		sortLocations(group)
		result = append(result, AreaGroup{Area: area, Locations: group})
	}
	return result
}

func areaOf(path, root string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "."
	}
	segments := strings.Split(rel, string(filepath.Separator))
	if len(segments) < 2 {
		return "."
	}
	return segments[0]
}

func sortLocations(locations []engine.FileLocation) {
	sort.Slice(locations, func(i, j int) bool {
		if locations[i].Path != locations[j].Path {
			return locations[i].Path < locations[j].Path
		}
		return locations[i].Line < locations[j].Line
	})
}
