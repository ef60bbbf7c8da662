package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirlabs/systest/engine"
)

func TestCoerceValueTypes(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  any
	}{
		{"stop", "true", true},
		{"stop", "FALSE", false},
		{"jobs", "4", 4},
		{"lang", " de ", "de"},
		{"tags", `@wip "@slow and @net"`, []string{"@wip", "@slow and @net"}},
		{"paths", "areaA/x.feature areaB", []string{"areaA/x.feature", "areaB"}},
		{"userdata_defines", "a=1 b=2", []engine.KV{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}},
		{"jobs", "-3", "-3"},
		{"tags", "-3", []string{"-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.value, func(t *testing.T) {
			got, err := coerceValue(tt.name, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceValueBooleanBeatsSequence(t *testing.T) {
	// The boolean check runs before sequence tokenization even for
	// sequence-named settings.
	got, err := coerceValue("tags", "true")
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestLoadEnvironmentSettingsStripsPrefixCaseInsensitively(t *testing.T) {
	settings, err := LoadEnvironmentSettings(map[string]string{
		"systest_lang": "de",
		"SYSTEST_JOBS": "2",
		"UNRELATED":    "ignored",
	}, slog.Default())
	require.NoError(t, err)

	lang, ok := settings.String("lang")
	require.True(t, ok)
	assert.Equal(t, "de", lang)

	jobs, ok := settings.Int("jobs")
	require.True(t, ok)
	assert.Equal(t, 2, jobs)

	assert.Len(t, settings, 2)
}

func TestLoadEnvironmentSettingsSkipsEmptyNameAndValue(t *testing.T) {
	settings, err := LoadEnvironmentSettings(map[string]string{
		"SYSTEST_":     "no name",
		"SYSTEST_LANG": "  ",
	}, slog.Default())
	require.NoError(t, err)
	assert.Empty(t, settings)
}

func TestLoadEnvironmentSettingsRejectsExcluded(t *testing.T) {
	for name := range excludedSettings {
		_, err := LoadEnvironmentSettings(map[string]string{
			"SYSTEST_" + name: "value",
		}, slog.Default())
		require.Error(t, err, name)
		assert.True(t, IsError(err), name)
	}
}

func TestLoadEnvironmentSettingsRejectsExcludedRegardlessOfValue(t *testing.T) {
	// An excluded setting is fatal even when its value would otherwise be
	// skipped as empty.
	for _, value := range []string{"", "   "} {
		_, err := LoadEnvironmentSettings(map[string]string{
			"SYSTEST_SUITE": value,
		}, slog.Default())
		require.Error(t, err, "value %q", value)
		assert.True(t, IsError(err))
	}
}
