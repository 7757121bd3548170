package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_FileValues(t *testing.T) {
	p := writeConfig(t, `
mode: release
server:
  addr: ":9000"
database:
  host: db
  port: 3307
  user: app
  password: secret
  dbname: borrow
redis:
  addr: redis:6379
auth:
  jwt_secret: s3cret
  token_ttl: 2h
log:
  level: debug
  format: console
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 3307, cfg.DB.Port)
	assert.Equal(t, "borrow", cfg.DB.DBName)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "eb_session", cfg.Auth.CookieName)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.False(t, cfg.IsDev())
}

func TestLoad_EnvOverrides(t *testing.T) {
	p := writeConfig(t, "mode: dev\n")
	t.Setenv("EB_DB_PASSWORD", "from-env")
	t.Setenv("EB_DB_PORT", "4406")
	t.Setenv("EB_CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("EB_JWT_SECRET", "env-secret")

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.DB.Password)
	assert.Equal(t, 4406, cfg.DB.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("unknown mode", func(t *testing.T) {
		_, err := Load(writeConfig(t, "mode: staging\n"))
		require.Error(t, err)
	})

	t.Run("release requires secret", func(t *testing.T) {
		t.Setenv("EB_JWT_SECRET", "")
		_, err := Load(writeConfig(t, "mode: release\n"))
		require.Error(t, err)
	})

	t.Run("dev falls back to a dev secret", func(t *testing.T) {
		t.Setenv("EB_JWT_SECRET", "")
		cfg, err := Load(writeConfig(t, "mode: dev\n"))
		require.NoError(t, err)
		assert.NotEmpty(t, cfg.Auth.JWTSecret)
	})
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
