package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
env: "local"
storage:
  driver: "sqlite"
  sqlite_path: "/tmp/vidtube.db"
tokens:
  access_secret: "a-secret"
  access_ttl: 15m
  refresh_secret: "r-secret"
  refresh_ttl: 72h
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Tokens.AccessTTL)
	assert.Equal(t, 72*time.Hour, cfg.Tokens.RefreshTTL)

	// Defaults.
	assert.Equal(t, 10, cfg.Password.BcryptCost)
	assert.Equal(t, 8000, cfg.HTTP.Port)
	assert.Equal(t, int64(16384), cfg.HTTP.BodyLimit)
	assert.True(t, cfg.HTTP.SecureCookies)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "from-env")
	t.Setenv("REFRESH_TOKEN_EXPIRY", "168h")
	t.Setenv("MONGO_URI", "mongodb://db:27017")

	cfg, err := Load(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Tokens.AccessSecret)
	assert.Equal(t, 168*time.Hour, cfg.Tokens.RefreshTTL)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
}

func TestLoad_FailCases(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectedErr error
	}{
		{
			name: "missing refresh secret",
			body: `
tokens:
  access_secret: "a"
  access_ttl: 15m
  refresh_ttl: 72h
`,
			expectedErr: ErrMissingSecret,
		},
		{
			name: "same secrets",
			body: `
tokens:
  access_secret: "same"
  refresh_secret: "same"
`,
			expectedErr: ErrSameSecrets,
		},
		{
			name: "refresh shorter than access",
			body: `
tokens:
  access_secret: "a"
  access_ttl: 2h
  refresh_secret: "r"
  refresh_ttl: 1h
`,
			expectedErr: ErrInvalidTTL,
		},
		{
			name:        "bcrypt cost too high",
			body:        baseYAML + "password:\n  bcrypt_cost: 40\n",
			expectedErr: ErrInvalidCost,
		},
		{
			name: "unknown driver",
			body: `
storage:
  driver: "postgres"
tokens:
  access_secret: "a"
  refresh_secret: "r"
`,
			expectedErr: ErrUnknownDriver,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)

	assert.Panics(t, func() { LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")) })
}
