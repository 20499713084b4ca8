package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "server"

[postgres]
database = "trading"

[orders]
lock_wait = "500ms"

[server]
port = 9090
`), 0o600))

	t.Setenv("BROKER_SERVER_PORT", "9191")
	t.Setenv("BROKER_REDIS_ENABLED", "false")
	t.Setenv("BROKER_SERVER_CORS_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "trading", cfg.Postgres.Database)
	assert.Equal(t, "localhost", cfg.Postgres.Host, "unset keys keep defaults")
	assert.Equal(t, 500*time.Millisecond, cfg.Orders.LockWait.Duration)
	assert.Equal(t, 9191, cfg.Server.Port, "env wins over file")
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "server", cfg.Mode)
}

func TestLoad_DSNPrecedence(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://alias/db")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://alias/db", cfg.Postgres.DSN)

	t.Setenv("BROKER_POSTGRES_DSN", "postgres://explicit/db")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://explicit/db", cfg.Postgres.DSN)
}

func TestLoad_BadFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.LogLevel = "loud"
	cfg.Server.Port = 0
	cfg.Orders.LockTTL = Duration{}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"unknown mode", "unknown log_level", "server: port", "orders: lock_ttl"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_ArchiveNeedsS3(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "archive"
	assert.ErrorContains(t, cfg.Validate(), "s3: must be enabled")

	cfg.S3.Enabled = true
	assert.NoError(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Server.APIKey = "admin"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Empty(t, out.Redis.Password, "empty secrets stay empty")
	assert.Equal(t, "pg-secret", cfg.Postgres.Password, "original untouched")

	out.Server.CORSOrigins[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Server.CORSOrigins[0])
}
