package gdao

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "gorm", cfg.Provider)
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "file::memory:?cache=shared", cfg.Database)
	assert.Equal(t, 1, cfg.MaxOpenConns)
	assert.Equal(t, "silent", cfg.ProviderOptions("gorm")["log_level"])
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gdao.yaml")
	content := `
provider: bun
driver: postgres
host: db.local
port: 5432
database: people
username: app
conn_max_lifetime: 5m
options:
  bun:
    log_level: debug
ssl:
  enabled: true
  mode: require
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "bun", cfg.Provider)
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "db.local", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "people", cfg.Database)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
	assert.True(t, cfg.SSL.Enabled)
	assert.Equal(t, "require", cfg.SSL.Mode)
	assert.Equal(t, "debug", cfg.ProviderOptions("bun")["log_level"])
	assert.Nil(t, cfg.ProviderOptions("mongo"))
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("GDAO_PROVIDER", "mongo")
	t.Setenv("GDAO_DATABASE", "gdao_test")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "mongo", cfg.Provider)
	assert.Equal(t, "gdao_test", cfg.Database)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
