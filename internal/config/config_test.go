package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"DATABASE_URL", "PORT", "LOG_LEVEL", "LOG_FORMAT", "ADMIN_TOKEN", "DATA_DIR",
	"POOL_SIZE", "POOL_ACQUIRE_TIMEOUT", "DRAIN_INTERVAL", "DRAIN_ATTEMPTS",
	"SITE_URL", "SITE_TITLE", "SITE_DESCRIPTION",
}

// clearEnv unsets every config variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "/srv/data/content.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "/srv/data/content.db", cfg.DatabaseURL)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "/srv/data", cfg.DataDir)
	assert.Equal(t, 16, cfg.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.AcquireTimeout)
	assert.Equal(t, 10*time.Second, cfg.DrainInterval)
	assert.Equal(t, 60, cfg.DrainAttempts)
	assert.Empty(t, cfg.AdminToken)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, `# site
DATABASE_URL="/data/a.db"
PORT=8080
DRAIN_INTERVAL=250ms
SITE_URL=https://example.com/
ADMIN_TOKEN=secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/a.db", cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.DrainInterval)
	assert.Equal(t, "https://example.com", cfg.Site.URL)
	assert.Equal(t, "secret", cfg.AdminToken)
	assert.Equal(t, path, cfg.EnvFile)
}

func TestLoad_EnvironmentWinsOverFile(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, "DATABASE_URL=/data/a.db\nPORT=8080\n")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database url", map[string]string{}},
		{"bad port", map[string]string{"DATABASE_URL": "/a.db", "PORT": "http"}},
		{"zero pool", map[string]string{"DATABASE_URL": "/a.db", "POOL_SIZE": "0"}},
		{"bad timeout", map[string]string{"DATABASE_URL": "/a.db", "POOL_ACQUIRE_TIMEOUT": "30"}},
		{"negative drain interval", map[string]string{"DATABASE_URL": "/a.db", "DRAIN_INTERVAL": "-1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}

func TestPersistDatabaseURL(t *testing.T) {
	t.Run("replaces in place", func(t *testing.T) {
		path := writeEnv(t, "# comment\nPORT=3000\nDATABASE_URL=/old.db\r\nADMIN_TOKEN=x\n")

		require.NoError(t, PersistDatabaseURL(path, "/data/new.db"))

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "# comment\nPORT=3000\nDATABASE_URL=\"/data/new.db\"\r\nADMIN_TOKEN=x\n", string(got))
	})

	t.Run("appends when missing", func(t *testing.T) {
		path := writeEnv(t, "PORT=3000")

		require.NoError(t, PersistDatabaseURL(path, "/data/new.db"))

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "PORT=3000\nDATABASE_URL=\"/data/new.db\"\n", string(got))
	})

	t.Run("creates the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")

		require.NoError(t, PersistDatabaseURL(path, "/data/with space.db"))

		vars, err := godotenv.Read(path)
		require.NoError(t, err)
		assert.Equal(t, "/data/with space.db", vars[DatabaseURLKey])
	})

	t.Run("round trips through Load", func(t *testing.T) {
		clearEnv(t)
		path := writeEnv(t, "export DATABASE_URL=/old.db\n")

		require.NoError(t, PersistDatabaseURL(path, "/data/new.db"))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/data/new.db", cfg.DatabaseURL)
	})
}
