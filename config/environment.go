package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/joho/godotenv"

	"github.com/sirlabs/systest/engine"
	"github.com/sirlabs/systest/flags"
)

const (
	// UserConfigFile is the per-user config file, looked up in the home
	// directory.
	UserConfigFile = ".systest"
	// ProjectConfigFile is the project-local config file, only consulted
	// when running from a source checkout.
	ProjectConfigFile = ".env"
)

// excludedSettings may only be supplied on the command line. Accepting them
// through namespaced variables would make bootstrapping ambiguous (the
// config file naming itself, the suite selecting its own .env).
var excludedSettings = map[string]bool{
	"suite":             true,
	"create_suite_name": true,
	"config":            true,
	"help":              true,
	"tags_help":         true,
	"lang_list":         true,
	"lang_help":         true,
	"verbose":           true,
	"version":           true,
}

// sequenceSettings take shell-style tokenized lists instead of scalars.
var sequenceSettings = map[string]bool{
	"name":             true,
	"tags":             true,
	"format":           true,
	"outfiles":         true,
	"userdata_defines": true,
	"paths":            true,
}

const userDataSetting = "userdata_defines"

// RunFromSource reports whether the binary runs from a source checkout
// rather than a packaged install. Only source builds consult the
// project-local config file.
func RunFromSource() bool {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return true
	}
	return info.Main.Version == "" || info.Main.Version == "(devel)"
}

// BuildEnvironmentValues merges the raw key=value configuration sources in
// ascending precedence: OS environment, user home config, project config
// (source builds only), the suite's .env, and the file named by --config.
// Later sources overwrite earlier ones key-for-key. Only the explicitly
// named config file is required to exist.
func BuildEnvironmentValues(suiteEnvFile, configFile string, log *slog.Logger) (map[string]string, error) {
	values := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok {
			values[key] = value
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		overlayFile(values, filepath.Join(home, UserConfigFile), log)
	}

	if RunFromSource() {
		overlayFile(values, ProjectConfigFile, log)
	}

	if suiteEnvFile != "" {
		overlayFile(values, suiteEnvFile, log)
	}

	if configFile != "" {
		loaded, err := godotenv.Read(configFile)
		if err != nil {
			return nil, NewErrorf("failed to read config file %q: %v", configFile, err)
		}
		for key, value := range loaded {
			values[key] = value
		}
	}

	return values, nil
}

func overlayFile(values map[string]string, path string, log *slog.Logger) {
	loaded, err := godotenv.Read(path)
	if err != nil {
		return
	}
	log.Debug("loaded configuration file", "path", path, "keys", len(loaded))
	for key, value := range loaded {
		values[key] = value
	}
}

// Settings holds the typed, namespaced settings extracted from the merged
// configuration sources. Values are bool, int, []string, []engine.KV or
// string, per the coercion rules.
type Settings map[string]any

// LoadEnvironmentSettings extracts the SYSTEST_-namespaced settings from the
// merged raw values, lower-casing names and coercing values. Settings in the
// exclusion set are a fatal input error regardless of their value.
func LoadEnvironmentSettings(values map[string]string, log *slog.Logger) (Settings, error) {
	settings := make(Settings)

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	prefix := flags.EnvVarPrefix + "_"
	for _, key := range keys {
		if len(key) < len(prefix) || !strings.EqualFold(key[:len(prefix)], prefix) {
			continue
		}
		name := strings.ToLower(key[len(prefix):])
		if name == "" {
			log.Debug("skipping namespaced variable with empty setting name", "variable", key)
			continue
		}
		if excludedSettings[name] {
			return nil, NewErrorf(
				"the setting %q can only be supplied on the command line, not as %s", name, key)
		}
		value := values[key]
		if strings.TrimSpace(value) == "" {
			log.Debug("skipping namespaced variable with empty value", "variable", key)
			continue
		}

		coerced, err := coerceValue(name, value)
		if err != nil {
			return nil, err
		}
		settings[name] = coerced
	}
	return settings, nil
}

// coerceValue types a raw setting value: boolean literals first, then pure
// integers, then shell-style sequences for sequence-typed settings, then a
// trimmed string.
func coerceValue(name, value string) (any, error) {
	trimmed := strings.TrimSpace(value)

	switch strings.ToLower(trimmed) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	if isDigits(trimmed) {
		if n, err := strconv.Atoi(trimmed); err == nil {
			return n, nil
		}
	}

	if sequenceSettings[name] {
		tokens, err := shlex.Split(trimmed)
		if err != nil {
			return nil, NewErrorf("failed to tokenize the setting %q: %v", name, err)
		}
		if name == userDataSetting {
			return parseUserData(tokens), nil
		}
		return tokens, nil
	}

	return trimmed, nil
}

// isDigits reports whether s is a non-empty run of ASCII digits. Signed
// values are not numeric here; "-3" stays a string (or a sequence element).
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parseUserData(tokens []string) []engine.KV {
	defs := make([]engine.KV, 0, len(tokens))
	for _, token := range tokens {
		key, value, _ := strings.Cut(token, "=")
		defs = append(defs, engine.KV{Key: key, Value: value})
	}
	return defs
}

// Typed accessors. A setting coerced to an unexpected type reads as unset.

func (s Settings) String(name string) (string, bool) {
	v, ok := s[name].(string)
	return v, ok
}

func (s Settings) Bool(name string) (bool, bool) {
	v, ok := s[name].(bool)
	return v, ok
}

func (s Settings) Int(name string) (int, bool) {
	v, ok := s[name].(int)
	return v, ok
}

func (s Settings) Sequence(name string) ([]string, bool) {
	v, ok := s[name].([]string)
	return v, ok
}

func (s Settings) UserData() ([]engine.KV, bool) {
	v, ok := s[userDataSetting].([]engine.KV)
	return v, ok
}
