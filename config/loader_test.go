package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parley.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "multiparty_chat", cfg.Collection.TaskType)
	assert.Equal(t, 3*time.Minute, cfg.Collection.ResponseTimeout)
	assert.True(t, cfg.Collection.IncludePersona)
	assert.Equal(t, "file", cfg.Record.Backend)
	assert.Equal(t, "chat_data", cfg.Record.BaseDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: ":9000"
collection:
  response_timeout: 90s
  task_type: pilot_chat
roster:
  variant_a: 10
  variant_b: 5
record:
  backend: redis
  key_prefix: "pilot:records"
redis:
  addr: "redis:6379"
log:
  level: debug
  format: console
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 90*time.Second, cfg.Collection.ResponseTimeout)
	assert.Equal(t, "pilot_chat", cfg.Collection.TaskType)
	assert.Equal(t, map[string]int{"variant_a": 10, "variant_b": 5}, cfg.Roster)
	assert.Equal(t, "redis", cfg.Record.Backend)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "parleyd", cfg.Telemetry.ServiceName)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PARLEY_SERVER_ADDR", ":7777")
	t.Setenv("PARLEY_COLLECTION_RESPONSE_TIMEOUT", "45s")
	t.Setenv("PARLEY_COLLECTION_INCLUDE_PERSONA", "false")
	t.Setenv("PARLEY_RECORD_BACKEND", "memory")
	t.Setenv("PARLEY_RATE_LIMIT_RPS", "2.5")
	t.Setenv("PARLEY_LOG_OUTPUT_PATHS", "stderr, /var/log/parley.log")
	t.Setenv("PARLEY_TELEMETRY_ENABLED", "true")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, 45*time.Second, cfg.Collection.ResponseTimeout)
	assert.False(t, cfg.Collection.IncludePersona)
	assert.Equal(t, "memory", cfg.Record.Backend)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.Equal(t, []string{"stderr", "/var/log/parley.log"}, cfg.Log.OutputPaths)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := writeConfigFile(t, "server:\n  addr: \":9000\"\n")
	t.Setenv("PARLEY_SERVER_ADDR", ":6000")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.Server.Addr)
}

func TestValidation(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Record.Backend = "carrier-pigeon"
		assert.ErrorContains(t, cfg.Validate(), "unknown record backend")
	})

	t.Run("file backend without base dir", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Record.BaseDir = ""
		assert.ErrorContains(t, cfg.Validate(), "base_dir")
	})

	t.Run("redis backend without addr", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Record.Backend = "redis"
		cfg.Redis.Addr = ""
		assert.ErrorContains(t, cfg.Validate(), "redis addr")
	})

	t.Run("non-positive roster entry", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Roster = map[string]int{"variant_a": 0}
		assert.ErrorContains(t, cfg.Validate(), "roster entry")
	})

	t.Run("zero response timeout", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Collection.ResponseTimeout = 0
		assert.ErrorContains(t, cfg.Validate(), "response_timeout")
	})
}

func TestCustomValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(cfg *Config) error {
			if cfg.Auth.JWTSecret == "" {
				return assert.AnError
			}
			return nil
		}).
		Load()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSinkConfigTranslation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Record.Backend = "redis"
	cfg.Record.KeyPrefix = "pilot:records"
	cfg.Record.TTL = time.Hour
	cfg.Redis.Addr = "redis:6379"
	cfg.Redis.PoolSize = 20

	sc := cfg.SinkConfig()
	assert.Equal(t, "redis", string(sc.Backend))
	assert.Equal(t, "multiparty_chat", sc.TaskType)
	assert.Equal(t, "redis:6379", sc.Redis.Addr)
	assert.Equal(t, 20, sc.Redis.PoolSize)
	assert.Equal(t, "pilot:records", sc.Redis.KeyPrefix)
	assert.Equal(t, time.Hour, sc.Redis.TTL)
}

func TestBuildLogger(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		logger, err := DefaultLogConfig().BuildLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		_ = logger.Sync()
	})

	t.Run("bad level", func(t *testing.T) {
		lc := DefaultLogConfig()
		lc.Level = "loud"
		_, err := lc.BuildLogger()
		assert.Error(t, err)
	})

	t.Run("bad format", func(t *testing.T) {
		lc := DefaultLogConfig()
		lc.Format = "xml"
		_, err := lc.BuildLogger()
		assert.Error(t, err)
	})
}
