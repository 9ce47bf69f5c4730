package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadDefaultFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, dir, DefaultFile, "min_line_coverage: 0.8\nexclude:\n  - '*.min.css'\n")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.MinLineCoverage)
	assert.Equal(t, []string{"*.min.css"}, cfg.Exclude)
	assert.True(t, cfg.UTF16Offsets)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Load("nope.yaml")

	assert.Error(t, err)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFile(t, dir, "bad.yaml", "min_line_coverage: [1, 2]\n")

	_, err := Load(path)

	assert.ErrorContains(t, err, "parse config")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFile(t, dir, "c.yaml", "log_level: debug\nutf16_offsets: true\n")
	writeFile(t, dir, ".env", EnvPrefix+"MIN_BYTE_COVERAGE=0.25\n")
	t.Setenv(EnvPrefix+"LOG_LEVEL", "trace")
	t.Setenv(EnvPrefix+"UTF16_OFFSETS", "false")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.False(t, cfg.UTF16Offsets)
	assert.Equal(t, 0.25, cfg.MinByteCoverage)
	// godotenv sets the variable in the process environment.
	require.NoError(t, os.Unsetenv(EnvPrefix+"MIN_BYTE_COVERAGE"))
}

func TestApplyEnvErrors(t *testing.T) {
	for _, key := range []string{"MIN_LINE_COVERAGE", "MIN_BYTE_COVERAGE", "UTF16_OFFSETS", "MAX_CONCURRENCY"} {
		t.Run(key, func(t *testing.T) {
			cfg := Default()
			err := cfg.applyEnv(func(k string) (string, bool) {
				if k == EnvPrefix+key {
					return "not-a-value", true
				}
				return "", false
			})
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"line threshold above one", func(c *Config) { c.MinLineCoverage = 1.5 }, true},
		{"negative byte threshold", func(c *Config) { c.MinByteCoverage = -0.1 }, true},
		{"no workers", func(c *Config) { c.MaxConcurrency = 0 }, true},
		{"globs", func(c *Config) { c.Include = []string{"https://*/app-??.css"} }, false},
		{"unclosed character class", func(c *Config) { c.Exclude = []string{"https://x.com/[ab"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestURLFilter(t *testing.T) {
	cfg := Config{
		Include: []string{"https://example.com/*"},
		Exclude: []string{"*.min.css", "*/vendor/*"},
	}
	filter, err := cfg.URLFilter()
	require.NoError(t, err)

	assert.True(t, filter.Selects("https://example.com/css/site.css"))
	assert.False(t, filter.Selects("https://example.com/site.min.css"))
	assert.False(t, filter.Selects("https://example.com/vendor/x.css"))
	assert.False(t, filter.Selects("https://other.com/site.css"))

	all, err := Config{}.URLFilter()
	require.NoError(t, err)
	assert.True(t, all.Selects("anything"))
}

func TestURLFilterWildcards(t *testing.T) {
	filter, err := NewURLFilter([]string{"https://cdn.example.com/app-??.css", "http://localhost:{3000,8080}/*"}, nil)
	require.NoError(t, err)

	assert.True(t, filter.Selects("https://cdn.example.com/app-v2.css"))
	assert.False(t, filter.Selects("https://cdn.example.com/app-v10.css"))
	assert.True(t, filter.Selects("http://localhost:8080/deep/path/index.html"))
	assert.False(t, filter.Selects("http://localhost:5173/index.html"))

	_, err = NewURLFilter(nil, []string{"[ab"})
	assert.ErrorContains(t, err, `invalid glob "[ab"`)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(wd)) })
}
