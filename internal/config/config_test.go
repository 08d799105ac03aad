package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestConfig points HOME and the working directory at fresh temp dirs
// so neither a real config file nor a stray .env leaks into the test.
func setupTestConfig(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	viper.Reset()
	t.Cleanup(viper.Reset)
	return home
}

func TestLoadDefaults(t *testing.T) {
	setupTestConfig(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Sample.Seed)
	assert.True(t, cfg.Sample.Fallback)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, strings.HasSuffix(cfg.Audit.Path, filepath.Join(".xlpipe", "runs.jsonl")))
}

func TestLoadEnvOverrides(t *testing.T) {
	setupTestConfig(t)
	t.Setenv("XLPIPE_LOG_LEVEL", "debug")
	t.Setenv("XLPIPE_SAMPLE_SEED", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, int64(7), cfg.Sample.Seed)
}

func TestLoadDotEnv(t *testing.T) {
	setupTestConfig(t)
	require.NoError(t, os.WriteFile(".env", []byte("XLPIPE_INPUT_SHEET=Data\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("XLPIPE_INPUT_SHEET") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Data", cfg.Input.Sheet)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	home := setupTestConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".xlpipe"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".xlpipe", "config.yaml"), []byte("log: [unclosed"), 0o600))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	setupTestConfig(t)
	_, err := Load()
	require.NoError(t, err)
	assert.False(t, HasErrors(Validate()))

	viper.Set("log.level", "loud")
	viper.Set("store.keep", true)
	issues := Validate()
	require.True(t, HasErrors(issues))
	var keys []string
	for _, i := range issues {
		if i.Severity == "error" {
			keys = append(keys, i.Key)
		}
	}
	assert.ElementsMatch(t, []string{"log.level", "store.keep"}, keys)
}

func TestSetGetAndReset(t *testing.T) {
	setupTestConfig(t)
	_, err := Load()
	require.NoError(t, err)

	require.NoError(t, Set("input.sheet", "Q1"))
	assert.Equal(t, "Q1", Get("input.sheet"))
	assert.FileExists(t, ConfigPath())

	assert.Error(t, Set("provider", "anthropic"))

	require.NoError(t, ResetConfig())
	assert.Equal(t, "", Get("input.sheet"))
	assert.NoFileExists(t, ConfigPath())
}

func TestInitDoesNotOverwrite(t *testing.T) {
	setupTestConfig(t)
	created, err := Init()
	require.NoError(t, err)
	assert.True(t, created)

	created, err = Init()
	require.NoError(t, err)
	assert.False(t, created)
}

func TestShowConfigAndEnv(t *testing.T) {
	setupTestConfig(t)
	_, err := Load()
	require.NoError(t, err)

	out := ShowConfig()
	assert.Contains(t, out, "sample\n")
	assert.Contains(t, out, "seed:")
	assert.Contains(t, out, "42")

	env := ToEnv()
	assert.Equal(t, "warn", env["XLPIPE_LOG_LEVEL"])
	assert.Equal(t, "XLPIPE_STORE_PATH", EnvName("store.path"))
}
