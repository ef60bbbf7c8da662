// Package suite resolves, validates, scaffolds and provisions test suites.
// A suite is a named, self-contained directory of feature files, step/hook
// code and declared dependencies under a common suites root.
package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sirlabs/systest/version"
)

// Conf holds the settings recognized in a suite.conf file. Unspecified
// settings fall back to framework defaults.
type Conf struct {
	FrameworkVersion string
	FeaturesFolder   string
	SupportFolder    string
}

// DefaultConf returns the framework defaults for an absent suite.conf.
func DefaultConf() Conf {
	return Conf{
		FrameworkVersion: version.Framework,
		FeaturesFolder:   FeaturesFolder,
		SupportFolder:    SupportFolder,
	}
}

// ParseConf reads a suite.conf file (key=value lines, '#' comments). A
// missing file, unrecognized keys and blank values all fall back to the
// defaults.
func ParseConf(path string) (Conf, error) {
	conf := DefaultConf()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return conf, nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return conf, fmt.Errorf("failed to parse suite config %q: %w", path, err)
	}
	for key, val := range values {
		if val == "" {
			continue
		}
		switch key {
		case "framework_version":
			conf.FrameworkVersion = val
		case "features_folder":
			conf.FeaturesFolder = val
		case "support_folder":
			conf.SupportFolder = val
		}
	}
	return conf, nil
}

// FormatConf serializes a Conf back to suite.conf syntax. Keys are emitted
// in a fixed order so ParseConf(FormatConf(c)) round-trips.
func FormatConf(conf Conf) string {
	var b strings.Builder
	pairs := map[string]string{
		"framework_version": conf.FrameworkVersion,
		"features_folder":   conf.FeaturesFolder,
		"support_folder":    conf.SupportFolder,
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, pairs[k])
	}
	return b.String()
}

// Data identifies and locates one test suite. Constructed once per run by
// Locate and read-only afterward.
type Data struct {
	// Name is the suite name without the directory suffix.
	Name string
	// Dir is the suite directory name (Name + Suffix).
	Dir string
	// Path is the absolute path to the suite directory.
	Path string

	FeaturesPath     string
	SupportPath      string
	RequirementsFile string
	ConfFile         string
	EnvFile          string
	LibPath          string

	// FrameworkVersion is the version declared in suite.conf.
	FrameworkVersion string
}

// Exists reports whether the suite directory is present on disk.
func (d *Data) Exists() bool {
	info, err := os.Stat(d.Path)
	return err == nil && info.IsDir()
}

// Valid reports whether both the features and support directories exist.
// Execution mode requires a valid suite; utility modes bypass this check.
func (d *Data) Valid() bool {
	return isDir(d.FeaturesPath) && isDir(d.SupportPath)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Locate resolves a suite name (with or without the directory suffix) under
// a suites root into a populated Data. It does not verify that the suite
// exists; callers decide, so scaffolding flows can reuse it.
func Locate(name string, suitesDir string) (*Data, error) {
	name = strings.TrimSuffix(name, Suffix)

	dir := name + Suffix
	path := filepath.Join(suitesDir, dir)

	// Defensive check against names that smuggle path separators.
	if filepath.Base(path) != dir {
		return nil, NewErrorf("the specified test suite name is invalid: %q", name)
	}

	conf, err := ParseConf(filepath.Join(path, ConfFile))
	if err != nil {
		return nil, NewError(err)
	}

	return &Data{
		Name:             name,
		Dir:              dir,
		Path:             path,
		FeaturesPath:     filepath.Join(path, conf.FeaturesFolder),
		SupportPath:      filepath.Join(path, conf.SupportFolder),
		RequirementsFile: filepath.Join(path, RequirementsFile),
		ConfFile:         filepath.Join(path, ConfFile),
		EnvFile:          filepath.Join(path, EnvFile),
		LibPath:          filepath.Join(path, LibFolder),
		FrameworkVersion: conf.FrameworkVersion,
	}, nil
}

// Create scaffolds a new test suite directory structure: the two mandatory
// subfolders, a templated config file, a templated requirements file and a
// marker file making the support folder importable.
func Create(name string, suitesDir string) (string, error) {
	if !strings.HasSuffix(name, Suffix) {
		name += Suffix
	}

	path := filepath.Join(suitesDir, name)
	if _, err := os.Stat(path); err == nil {
		return "", NewErrorf("the test suite already exists: %q", path)
	}

	if err := os.MkdirAll(filepath.Join(path, FeaturesFolder), 0o755); err != nil {
		return "", fmt.Errorf("failed to create suite features folder: %w", err)
	}
	if err := os.Mkdir(filepath.Join(path, SupportFolder), 0o755); err != nil {
		return "", fmt.Errorf("failed to create suite support folder: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, ConfFile), []byte(defaultConfContent), 0o644); err != nil {
		return "", fmt.Errorf("failed to write suite config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, RequirementsFile), []byte(defaultRequirementsContent), 0o644); err != nil {
		return "", fmt.Errorf("failed to write suite requirements: %w", err)
	}
	marker := filepath.Join(path, SupportFolder, supportMarkerFile)
	if err := os.WriteFile(marker, []byte(supportMarkerContent), 0o644); err != nil {
		return "", fmt.Errorf("failed to write support marker: %w", err)
	}

	return path, nil
}
