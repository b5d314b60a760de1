package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("MENTORA_DB", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("GOOGLE_API_KEY", "gkey")
	t.Setenv("REDIS_ADDR", "10.0.0.5:6380")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.BasicConfig.Database)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "gkey", cfg.Providers["gemini"].APIKey)
	assert.Equal(t, DefaultGeminiModel, cfg.Providers["gemini"].Model)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "10.0.0.5", cfg.Redis.Host)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL())
	assert.Equal(t, 24*time.Hour, cfg.Auth.RefreshTTL())
}

func TestLoadFileResolvesRelativeSqlitePath(t *testing.T) {
	t.Setenv("MENTORA_DB", "")
	t.Setenv("DATABASE_DSN", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"basic_config": {"server_address": ":9000", "database": "sqlite3"},
		"databases": {"sqlite3": {"dsn": "data/app.db"}},
		"auth": {"jwt_secret": "from-file", "access_ttl_minutes": 15}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.BasicConfig.ServerAddress)
	assert.Equal(t, filepath.Join(dir, "data/app.db"), cfg.Databases["sqlite3"].DSN)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL())
}

func TestValidateRequiresSecretAndKnownDriver(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = "s"
	assert.NoError(t, cfg.Validate())

	cfg.BasicConfig.Database = "oracle"
	assert.Error(t, cfg.Validate())
}

func TestLoadNormalizesSqliteAlias(t *testing.T) {
	t.Setenv("MENTORA_DB", "SQLite")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.BasicConfig.Database)
	_, ok := cfg.Databases[cfg.BasicConfig.Database]
	assert.True(t, ok, "normalized driver must name a configured database")
}
