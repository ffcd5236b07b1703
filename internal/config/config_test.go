package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no stray config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://itunes.apple.com/lookup", cfg.Lookup.BaseURL)
	assert.Zero(t, cfg.Lookup.TimeoutSecs)
	assert.Equal(t, "asp-search/0.1", cfg.Lookup.UserAgent)
	assert.Equal(t, []string{"console"}, cfg.Output.Sinks)
	assert.Equal(t, "ASPS_output_", cfg.Output.FolderPrefix)
	assert.Empty(t, cfg.Output.Dir)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "app_bundle_data", cfg.Store.Table)
	assert.Equal(t, "run_metadata", cfg.Store.MetadataTable)
	assert.Empty(t, cfg.Metrics.TextfilePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
lookup:
  timeout_secs: 5
output:
  dir: /tmp/reports
  sinks: [text, store]
store:
  path: /var/lib/asp/apps.db
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Lookup.TimeoutSecs)
	assert.Equal(t, "/tmp/reports", cfg.Output.Dir)
	assert.Equal(t, []string{"text", "store"}, cfg.Output.Sinks)
	assert.Equal(t, "/var/lib/asp/apps.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, "https://itunes.apple.com/lookup", cfg.Lookup.BaseURL)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ASPSEARCH_STORE_DRIVER", "postgres")
	t.Setenv("ASPSEARCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ASPSEARCH_LOOKUP_BASE_URL", "http://localhost:9999/lookup")
	t.Setenv("ASPSEARCH_METRICS_TEXTFILE_PATH", "/tmp/asp.prom")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999/lookup", cfg.Lookup.BaseURL)
	assert.Equal(t, "/tmp/asp.prom", cfg.Metrics.TextfilePath)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("lookup: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Lookup.BaseURL = "https://itunes.apple.com/lookup"
	cfg.Lookup.TimeoutSecs = 30
	cfg.Store.Driver = "sqlite"
	cfg.Log.Format = "json"
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate())
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/asp"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Lookup.BaseURL = ""
	cfg.Lookup.TimeoutSecs = -1
	cfg.Store.Driver = "mysql"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup.base_url is required")
	assert.Contains(t, err.Error(), "lookup.timeout_secs must be >= 0")
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "log.format must be json or console")
}
