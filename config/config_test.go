package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	assert.Equal(t, BackendFile, c.Storage.Backend)
	assert.Equal(t, "0 16 * * *", c.Archive.Schedule)
	assert.Equal(t, 10, c.RateLimit.Max)
}

// TestLoadYAMLThenEnv проверяет, что переменные окружения перекрывают файл.
func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribsy.yaml")
	yml := `
server:
  port: "8081"
storage:
  backend: postgres
  postgres_dsn: postgres://localhost/scribsy
archive:
  timezone: Europe/Moscow
  period: weekly
admin:
  session_ttl: 30m
rate_limit:
  window: 1m
  max: 20
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("SCRIBSY_PORT", "9000")
	t.Setenv("SCRIBSY_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "9000", c.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Server.AllowedOrigins)
	assert.Equal(t, BackendPostgres, c.Storage.Backend)
	assert.Equal(t, "weekly", c.Archive.Period)
	assert.Equal(t, 30*time.Minute, c.Admin.SessionTTL)
	assert.Equal(t, time.Minute, c.RateLimit.Window)

	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", loc.String())
}

func TestValidateReportsAllProblems(t *testing.T) {
	c := Default()
	c.Storage.Backend = "mongo"
	c.Archive.Timezone = "Mars/Olympus"
	c.RateLimit.Max = 0

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
	assert.Contains(t, err.Error(), "archive.timezone")
	assert.Contains(t, err.Error(), "rate_limit")
}

func TestBadEnvValue(t *testing.T) {
	t.Setenv("SCRIBSY_ADMIN_SESSION_TTL", "forever")
	_, err := Load("")
	assert.Error(t, err)
}
