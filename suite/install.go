package suite

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/acarl005/stripansi"
)

// PackagePathEnv is the process search path consulted for already-installed
// distributions and extended with the suite lib directory after a
// successful install, so dependencies become importable without restarting.
const PackagePathEnv = "PYTHONPATH"

// CommandBuilder constructs the installer subprocess. Injectable so tests
// can count and fake invocations.
type CommandBuilder func(ctx context.Context, name string, args ...string) *exec.Cmd

// InstallConfig configures one dependency installation pass.
type InstallConfig struct {
	// LibDir is the suite-local directory dependencies are installed into.
	LibDir string
	// RequirementsFile is the suite requirements file; empty or missing
	// means there is nothing to install.
	RequirementsFile string
	// Python is the interpreter used to invoke pip.
	Python string
	// Out receives the installer's captured output when it fails.
	Out io.Writer
	// CommandBuilder defaults to exec.CommandContext.
	CommandBuilder CommandBuilder
	Log            *slog.Logger
}

func (cfg *InstallConfig) withDefaults() {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.CommandBuilder == nil {
		cfg.CommandBuilder = exec.CommandContext
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
}

// Install ensures the suite's declared dependencies are importable from the
// suite-local lib directory, installing only when unsatisfied. On success
// or no-op the lib directory is added to the process search path; the
// addition is never removed.
func Install(ctx context.Context, cfg InstallConfig) error {
	cfg.withDefaults()
	log := cfg.Log

	if skip, reason := skipInstall(cfg.RequirementsFile); skip {
		log.Debug("skipping dependency installation", "reason", reason)
		return nil
	}

	libDir, err := filepath.Abs(cfg.LibDir)
	if err != nil {
		return fmt.Errorf("failed to resolve lib directory %q: %w", cfg.LibDir, err)
	}

	log.Info("checking test suite dependencies")

	satisfied, err := requirementsSatisfied(cfg.RequirementsFile, libDir)
	if err != nil {
		return NewInstallerError(err)
	}

	if satisfied {
		log.Info("dependencies already satisfied")
	} else {
		log.Info("installing dependencies", "target", libDir)
		if err := runInstaller(ctx, cfg, libDir); err != nil {
			return err
		}
		log.Info("dependencies successfully installed", "target", libDir)
	}

	exportSearchPath(libDir, log)
	return nil
}

// skipInstall decides whether there is anything to install at all.
func skipInstall(requirementsFile string) (bool, string) {
	if requirementsFile == "" {
		return true, "no requirements file configured"
	}
	info, err := os.Stat(requirementsFile)
	if err != nil || info.IsDir() {
		return true, fmt.Sprintf("%s not found in the test suite", filepath.Base(requirementsFile))
	}
	if emptyOrCommentsOnly(requirementsFile) {
		return true, fmt.Sprintf("%s is empty or comments only", filepath.Base(requirementsFile))
	}
	return false, ""
}

func emptyOrCommentsOnly(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			return false
		}
	}
	return true
}

// requirementsSatisfied checks every requirement against the installed
// distributions without invoking the installer. A requirement whose marker
// evaluates false does not apply here and counts as satisfied.
func requirementsSatisfied(requirementsFile, libDir string) (bool, error) {
	reqs, err := ParseRequirementsFile(requirementsFile)
	if err != nil {
		return false, err
	}

	searchPath := append([]string{libDir}, ambientSearchPath()...)
	installed := installedDistributions(searchPath)

	for _, req := range reqs {
		if req.Marker != nil {
			applies, err := req.Marker.Evaluate()
			if err != nil {
				return false, err
			}
			if !applies {
				continue
			}
		}

		installedVersion, ok := installed[CanonicalName(req.Name)]
		if !ok {
			return false, nil
		}
		satisfied, err := req.SatisfiedBy(installedVersion)
		if err != nil {
			return false, err
		}
		if !satisfied {
			return false, nil
		}
	}
	return true, nil
}

func ambientSearchPath() []string {
	var dirs []string
	for _, dir := range filepath.SplitList(os.Getenv(PackagePathEnv)) {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// installedDistributions scans the search path for installed distribution
// metadata (<name>.dist-info/METADATA). The first occurrence of a package
// wins, so the lib directory takes priority over the ambient path.
func installedDistributions(searchPath []string) map[string]string {
	installed := make(map[string]string)
	for _, dir := range searchPath {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || !strings.HasSuffix(entry.Name(), ".dist-info") {
				continue
			}
			name, ver, ok := parseDistMetadata(filepath.Join(dir, entry.Name(), "METADATA"))
			if !ok {
				continue
			}
			key := CanonicalName(name)
			if _, seen := installed[key]; !seen {
				installed[key] = ver
			}
		}
	}
	return installed
}

func parseDistMetadata(path string) (name, ver string, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break // end of headers
		}
		if v, found := strings.CutPrefix(line, "Name: "); found {
			name = strings.TrimSpace(v)
		} else if v, found := strings.CutPrefix(line, "Version: "); found {
			ver = strings.TrimSpace(v)
		}
	}
	return name, ver, name != "" && ver != ""
}

// runInstaller invokes the package installer subprocess with an
// only-upgrade-if-needed strategy targeting the suite lib directory. A
// failure surfaces the captured output verbatim before halting.
func runInstaller(ctx context.Context, cfg InstallConfig, libDir string) error {
	args := []string{
		"-m", "pip",
		"install",
		"--upgrade",
		"--upgrade-strategy", "only-if-needed",
		"-r", cfg.RequirementsFile,
		"--target", libDir,
	}

	cmd := cfg.CommandBuilder(ctx, cfg.Python, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		cfg.Log.Debug("installer output", "stdout", stripansi.Strip(strings.TrimSpace(stdout.String())))
		return nil
	}

	if errors.Is(err, exec.ErrNotFound) {
		return NewInstallerErrorf(
			"%q command not found; ensure it is installed and accessible in your PATH", cfg.Python)
	}

	fmt.Fprintln(cfg.Out, "\n--- ERROR ---")
	fmt.Fprintf(cfg.Out, "Command: %s %s\n", cfg.Python, strings.Join(args, " "))
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintf(cfg.Out, "Return Code: %d\n", exitErr.ExitCode())
	}
	fmt.Fprintln(cfg.Out, "STDOUT:")
	fmt.Fprintln(cfg.Out, stdout.String())
	fmt.Fprintln(cfg.Out, "STDERR:")
	fmt.Fprintln(cfg.Out, stderr.String())

	return NewInstallerErrorf("the package installer failed performing the request, check the output above: %v", err)
}

// exportSearchPath prepends the lib directory to the process search path so
// newly or previously installed dependencies become importable immediately.
// Additive only; nothing is ever removed.
func exportSearchPath(libDir string, log *slog.Logger) {
	current := os.Getenv(PackagePathEnv)
	for _, dir := range filepath.SplitList(current) {
		if dir == libDir {
			return
		}
	}
	updated := libDir
	if current != "" {
		updated = libDir + string(os.PathListSeparator) + current
	}
	os.Setenv(PackagePathEnv, updated)
	log.Debug("added lib directory to package search path", "dir", libDir)
}
