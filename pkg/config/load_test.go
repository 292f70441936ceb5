// pkg/config/load_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to create a temporary config file
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	tempFile := filepath.Join(t.TempDir(), "test_config.yaml")
	err := os.WriteFile(tempFile, []byte(content), 0o644)
	require.NoError(t, err, "Failed to write temp config file")
	return tempFile
}

// clearEnv blanks every variable LoadConfig reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GRAPHORM_DATABASE_DIALECT",
		"GRAPHORM_DATABASE_DSN",
		"GRAPHORM_DATABASE_POOL_MAXIDLECONNS",
		"GRAPHORM_DATABASE_POOL_MAXOPENCONNS",
		"GRAPHORM_DATABASE_POOL_CONNMAXLIFETIME",
		"GRAPHORM_LOGGING_LEVEL",
		"GRAPHORM_LOGGING_FORMAT",
		"GRAPHORM_SCHEMA_SINGULARTABLES",
	} {
		t.Setenv(key, "")
	}
}

// chdirTemp runs the test from an empty directory so no graphorm.yaml is found.
func chdirTemp(t *testing.T) {
	t.Helper()
	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(originalDir) })
}

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	clearEnv(t)
	chdirTemp(t)
	t.Setenv("GRAPHORM_DATABASE_DIALECT", "sqlite")
	t.Setenv("GRAPHORM_DATABASE_DSN", "file::memory:?cache=shared")

	cfg, err := LoadConfig("")
	require.NoError(t, err, "Loading config with required fields via env should not error")

	defaults := NewDefaultConfig()
	assert.Equal(t, defaults.Database.Pool, cfg.Database.Pool)
	assert.Equal(t, defaults.Logging, cfg.Logging)
	assert.False(t, cfg.Schema.SingularTables)
	assert.Equal(t, "sqlite", cfg.Database.Dialect)
	assert.Equal(t, "file::memory:?cache=shared", cfg.Database.DSN)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)
	configFile := createTempConfigFile(t, `
database:
  dialect: "mysql"
  dsn: "user:pass@tcp(host:3306)/db?parseTime=true"
  pool:
    maxOpenConns: 50
    connMaxLifetime: "30m"
logging:
  level: "debug"
schema:
  singularTables: true
`)

	cfg, err := LoadConfig(configFile)
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Dialect)
	assert.Equal(t, "user:pass@tcp(host:3306)/db?parseTime=true", cfg.Database.DSN)
	assert.Equal(t, 50, cfg.Database.Pool.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.Database.Pool.ConnMaxLifetime)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Schema.SingularTables)

	defaults := NewDefaultConfig()
	assert.Equal(t, defaults.Database.Pool.MaxIdleConns, cfg.Database.Pool.MaxIdleConns)
	assert.Equal(t, defaults.Logging.Format, cfg.Logging.Format)
}

func TestLoadConfig_Precedence_EnvOverFileOverDefault(t *testing.T) {
	clearEnv(t)
	configFile := createTempConfigFile(t, `
database:
  dialect: "sqlite"
  dsn: "file:from_file.db"
  pool:
    maxOpenConns: 20
logging:
  level: "debug"
`)
	t.Setenv("GRAPHORM_DATABASE_DSN", "file:from_env.db")
	t.Setenv("GRAPHORM_LOGGING_LEVEL", "error")

	cfg, err := LoadConfig(configFile)
	require.NoError(t, err)

	assert.Equal(t, "file:from_env.db", cfg.Database.DSN, "Precedence: Env > File")
	assert.Equal(t, "error", cfg.Logging.Level, "Precedence: Env > File")
	assert.Equal(t, "sqlite", cfg.Database.Dialect, "Precedence: File (not in env)")
	assert.Equal(t, 20, cfg.Database.Pool.MaxOpenConns, "Precedence: File (not in env)")
	assert.Equal(t, NewDefaultConfig().Logging.Format, cfg.Logging.Format, "Precedence: Default")
}

func TestLoadConfig_Error_MissingRequiredFields(t *testing.T) {
	clearEnv(t)
	chdirTemp(t)

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration:")
	assert.NotContains(t, err.Error(), "error reading", "A missing default file is not an error")
	assert.Contains(t, err.Error(), "Field 'Config.Database.Dialect' failed validation on 'required'")
	assert.Contains(t, err.Error(), "Field 'Config.Database.DSN' failed validation on 'required'")
}

func TestLoadConfig_Error_InvalidLogging(t *testing.T) {
	clearEnv(t)
	configFile := createTempConfigFile(t, `
database:
  dialect: "sqlite"
  dsn: "file::memory:"
logging:
  format: "xml"
`)
	_, err := LoadConfig(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Field 'Config.Logging.Format' failed validation on 'oneof'")
}

func TestLoadConfig_Error_SpecifiedFileNotFound(t *testing.T) {
	clearEnv(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "non_existent_config.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading specified config file")
	assert.Contains(t, err.Error(), "non_existent_config.yaml")
}

func TestLoadConfig_Error_MalformedFile(t *testing.T) {
	clearEnv(t)
	configFile := createTempConfigFile(t, `
database:
  dialect: mysql"
logging: level: debug
`)
	_, err := LoadConfig(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading specified config file")
	assert.NotContains(t, err.Error(), "error decoding configuration")
}

func TestValidate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Database.Dialect = "postgres"
	cfg.Database.DSN = "postgres://localhost/db"
	assert.NoError(t, Validate(cfg))

	cfg.Database.Pool.MaxOpenConns = -1
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxOpenConns")
}
