package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "provider:\n  backend: gemini\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.Provider.Backend)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 10, cfg.Database.MaxIdleConns)
	assert.Equal(t, int64(20<<20), cfg.Limits.InlineMaxBytes)
	assert.Equal(t, 600, cfg.Limits.PipelineTimeoutSec)
	assert.Equal(t, 4000, cfg.Limits.Pass1ContextMax)
	assert.Equal(t, 30, cfg.Limits.RateCapacity)
}

func TestLoad_ExplicitValuesSurviveDefaults(t *testing.T) {
	body := `
server:
  port: 9090
database:
  driver: mysql
  maxOpenConns: 4
  maxIdleConns: 2
limits:
  rateCapacity: 5
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.Equal(t, 2, cfg.Database.MaxIdleConns)
	assert.Equal(t, 5, cfg.Limits.RateCapacity)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDSNBuilders(t *testing.T) {
	var cfg Config
	cfg.Database.Host = "db.local"
	cfg.Database.Port = 3306
	cfg.Database.User = "motion"
	cfg.Database.Password = "s3cret"
	cfg.Database.Name = "motionspec"

	assert.Equal(t,
		"motion:s3cret@tcp(db.local:3306)/motionspec?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.MySQLDSN())

	cfg.Database.Port = 5432
	assert.Contains(t, cfg.PostgresDSN(), "sslmode=disable")
	cfg.Database.SSLMode = "require"
	assert.Contains(t, cfg.PostgresDSN(), "sslmode=require")
}
