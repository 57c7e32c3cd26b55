package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moontrade/rxredis/logger"
	"github.com/moontrade/rxredis/xstream"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, xstream.DefaultBatch, cfg.Source.Batch)
	assert.Equal(t, xstream.DefaultStreamBlock, cfg.Source.Block)
	assert.Equal(t, int64(xstream.DefaultMaxLen), cfg.Sink.MaxLen)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	t.Setenv("RXREDIS_REDIS_ADDR", "10.0.0.5:6380")
	t.Setenv("RXREDIS_SOURCE_COMPLETE_ON_TIMEOUT", "true")

	path := writeFile(t, "rxredis.yaml", `
redis:
  addr: 127.0.0.1:7000
  db: 2
  pool_size: 16
log:
  level: debug
  json: true
source:
  batch: 50
  block: 250ms
sink:
  max_len: -1
server:
  addr: 0.0.0.0:6390
  notify_keyspace_events: KA
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.True(t, cfg.Log.JSON)
	assert.True(t, cfg.Source.CompleteOnTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Source.Block)
	assert.Equal(t, int64(-1), cfg.Sink.MaxLen)

	opts := cfg.StreamOptions("prod", xstream.Beginning)
	assert.Equal(t, xstream.StreamOptions{
		Stream:            "prod",
		StartID:           xstream.Beginning,
		Batch:             50,
		Block:             250 * time.Millisecond,
		CompleteOnTimeout: true,
	}, opts)

	ropts, err := cfg.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, 16, ropts.MaxActive)
	assert.Nil(t, ropts.TLS)

	sopts := cfg.ServerOptions()
	assert.Equal(t, "0.0.0.0:6390", sopts.Addr)
	assert.Equal(t, "KA", sopts.NotifyKeyspaceEvents)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "rxredis.toml", `
workers = 8

[redis]
password = "secret"

[source]
batch = 10
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 10, cfg.Source.Batch)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	for name, mutate := range map[string]func(*Config){
		"bad addr":       func(c *Config) { c.Redis.Addr = "nowhere" },
		"db range":       func(c *Config) { c.Redis.DB = 16 },
		"cert alone":     func(c *Config) { c.Redis.TLSCert = "cert.pem" },
		"key alone":      func(c *Config) { c.Redis.TLSKey = "key.pem" },
		"log level":      func(c *Config) { c.Log.Level = "loud" },
		"zero batch":     func(c *Config) { c.Source.Batch = 0 },
		"zero block":     func(c *Config) { c.Source.Block = 0 },
		"negative pool":  func(c *Config) { c.Redis.PoolSize = -1 },
		"server address": func(c *Config) { c.Server.Addr = "" },
		"no workers":     func(c *Config) { c.Workers = 0 },
		"one worker":     func(c *Config) { c.Workers = 1 },
	} {
		cfg := base
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalid, name)
	}
}

func TestEnvValidation(t *testing.T) {
	t.Setenv("RXREDIS_LOG_LEVEL", "loud")
	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestWorkersEnv(t *testing.T) {
	t.Setenv("RXREDIS_WORKERS", "1")
	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalid)

	t.Setenv("RXREDIS_WORKERS", "2")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
}

func TestRedisOptionsMissingKeyPair(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Redis.TLSCert = filepath.Join(t.TempDir(), "cert.pem")
	cfg.Redis.TLSKey = filepath.Join(t.TempDir(), "key.pem")
	_, err = cfg.RedisOptions()
	assert.Error(t, err)
}

func TestApplyLog(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Log.JSON = true
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	require.NoError(t, cfg.ApplyLog(&buf))
	t.Cleanup(func() {
		logger.SetConsoleWriter(os.Stderr, false)
		logger.SetLevel("info")
	})
	logger.Info("hidden")
	assert.Zero(t, buf.Len())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), `"shown"`)
}
