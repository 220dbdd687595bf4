package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, ":8080", *listen)
	assert.Equal(t, "isobath.db", *dbPath)
	assert.Empty(t, *postgresDSN)
	assert.Equal(t, ".env", *envFile)
	assert.False(t, *debugLogs)
}

func TestResolveDSN(t *testing.T) {
	t.Setenv(envPostgresDSN, "postgres://env")
	assert.Equal(t, "postgres://flag", resolveDSN("postgres://flag"))
	assert.Equal(t, "postgres://env", resolveDSN(""))

	t.Setenv(envPostgresDSN, "")
	assert.Empty(t, resolveDSN(""))
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, loadEnvFile(""))
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ISOBATH_TEST_VALUE=from-file\n"), 0o600))
	t.Setenv("ISOBATH_TEST_VALUE", "")
	os.Unsetenv("ISOBATH_TEST_VALUE")
	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("ISOBATH_TEST_VALUE"))
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.GetInterval())

	path := filepath.Join(t.TempDir(), "contour.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"interval": 0.5, "grid_resolution": 150}`), 0o600))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.GetInterval())
	assert.Equal(t, 150, cfg.GetGridResolution())

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
