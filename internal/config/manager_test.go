package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)
	t.Setenv(CredentialsEnv, "")
	t.Setenv(LogLevelEnv, "")
	t.Setenv(LogFormatEnv, "")
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	useTempHome(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(10001), cfg.Report.PartialThreshold)
	assert.Equal(t, 10000, cfg.Report.RowLimit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Cache.Disabled)
}

func TestSaveAndLoadConfig(t *testing.T) {
	dir := useTempHome(t)

	cfg := DefaultConfig()
	cfg.CredentialsFile = "/tmp/client_secret.json"
	cfg.Report.PartialThreshold = 5000
	require.NoError(t, SaveConfig(cfg))

	info, err := os.Stat(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/client_secret.json", loaded.CredentialsFile)
	assert.Equal(t, int64(5000), loaded.Report.PartialThreshold)
}

func TestLoadConfigFillsMissingValues(t *testing.T) {
	dir := useTempHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("report:\n  row_limit: 250\n"), 0600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Report.RowLimit)
	assert.Equal(t, int64(10001), cfg.Report.PartialThreshold)
	assert.Equal(t, 24, cfg.Cache.MetadataTTLHours)
}

func TestEnvOverrides(t *testing.T) {
	useTempHome(t)
	t.Setenv(CredentialsEnv, "/secrets/sa.json")
	t.Setenv(LogLevelEnv, "DEBUG")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/secrets/sa.json", cfg.CredentialsFile)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestSetKey(t *testing.T) {
	useTempHome(t)

	require.NoError(t, Set("report.partial_threshold", "20001"))
	require.NoError(t, Set("cache.disabled", "true"))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(20001), cfg.Report.PartialThreshold)
	assert.True(t, cfg.Cache.Disabled)

	assert.Error(t, Set("report.partial_threshold", "lots"))
	assert.Error(t, Set("no.such.key", "1"))
	assert.Error(t, Set("log.format", "xml"))
}

func TestActivePreset(t *testing.T) {
	useTempHome(t)

	require.NoError(t, SetActivePreset("client-a"))
	name, err := GetActivePreset()
	require.NoError(t, err)
	assert.Equal(t, "client-a", name)
}
