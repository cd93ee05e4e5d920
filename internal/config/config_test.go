package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "duelsync.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func validConfig() *DuelsyncConfig {
	c := Default()
	c.SnapshotURL = "http://ledger:9000"
	return c
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `instance: prod
http_addr: ":9090"
bot_handle: duelbot
snapshot_url: "http://ledger:9000"
redis_url: "redis://localhost:6379/0"
announce: both
challenge_ttl: 2h
fetch_timeout: 3s
observer_buffer: 16
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "prod", config.Instance)
	assert.Equal(t, ":9090", config.HTTPAddr)
	assert.Equal(t, "duelbot", config.BotHandle)
	assert.Equal(t, AnnounceBoth, config.Announce)
	assert.Equal(t, 2*time.Hour, config.ChallengeTTL)
	assert.Equal(t, 3*time.Second, config.FetchTimeout)
	assert.Equal(t, 16, config.ObserverBuffer)

	// Defaults survive for unspecified fields
	assert.Equal(t, uint64(85_000_000_000), config.TargetLamports)
	assert.Equal(t, time.Minute, config.SweepInterval)
	assert.Equal(t, 15*time.Second, config.AnnounceTimeout)
	assert.Equal(t, CreatorHTTP, config.Creator)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/duelsync.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `instance: prod
http_addr:
  - this is invalid
    yaml syntax
`)

	config, err := Load(configPath)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoad_InvalidConfiguration(t *testing.T) {
	configPath := writeConfig(t, `instance: prod
`)

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "snapshot_url is required")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	configPath := writeConfig(t, `instance: prod
snapshot_url: "http://ledger:9000"
`)
	t.Setenv("DUELSYNC_INSTANCE", "staging")
	t.Setenv("DUELSYNC_FETCH_TIMEOUT", "750ms")
	t.Setenv("DUELSYNC_TARGET_LAMPORTS", "1000")

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "staging", config.Instance)
	assert.Equal(t, 750*time.Millisecond, config.FetchTimeout)
	assert.Equal(t, uint64(1000), config.TargetLamports)
	assert.Equal(t, "http://ledger:9000", config.SnapshotURL)
}

func TestLoad_BadEnv(t *testing.T) {
	configPath := writeConfig(t, `snapshot_url: "http://ledger:9000"
`)
	t.Setenv("DUELSYNC_OBSERVER_BUFFER", "lots")

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv("DUELSYNC_SNAPSHOT_URL", "http://ledger:9000")

	config, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, "default", config.Instance)
	assert.Equal(t, "http://ledger:9000", config.SnapshotURL)

	// A file that exists but is broken is still an error
	configPath := writeConfig(t, "instance: [")
	_, err = LoadOrDefault(configPath)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DuelsyncConfig)
		errMsg string
	}{
		{"valid", func(c *DuelsyncConfig) {}, ""},
		{"local creator", func(c *DuelsyncConfig) { c.Creator = CreatorLocal }, ""},
		{"redis announce", func(c *DuelsyncConfig) { c.Announce = AnnounceRedis; c.RedisURL = "redis://localhost:6379" }, ""},
		{"empty instance", func(c *DuelsyncConfig) { c.Instance = "" }, "invalid instance name"},
		{"instance with spaces", func(c *DuelsyncConfig) { c.Instance = "my duels" }, "invalid instance name"},
		{"no http addr", func(c *DuelsyncConfig) { c.HTTPAddr = "" }, "http_addr is required"},
		{"no bot", func(c *DuelsyncConfig) { c.BotHandle = "" }, "bot_handle is required"},
		{"zero target", func(c *DuelsyncConfig) { c.TargetLamports = 0 }, "target_lamports must be > 0"},
		{"zero ttl", func(c *DuelsyncConfig) { c.ChallengeTTL = 0 }, "challenge_ttl must be > 0"},
		{"negative ttl", func(c *DuelsyncConfig) { c.ChallengeTTL = -time.Second }, "challenge_ttl must be > 0"},
		{"zero sweep", func(c *DuelsyncConfig) { c.SweepInterval = 0 }, "sweep_interval must be > 0"},
		{"relative snapshot url", func(c *DuelsyncConfig) { c.SnapshotURL = "/duels" }, "invalid snapshot_url"},
		{"unknown creator", func(c *DuelsyncConfig) { c.Creator = "magic" }, "invalid creator"},
		{"unknown announce", func(c *DuelsyncConfig) { c.Announce = "tweet" }, "invalid announce"},
		{"redis announce without url", func(c *DuelsyncConfig) { c.Announce = AnnounceBoth }, "requires redis_url"},
		{"bad redis url", func(c *DuelsyncConfig) { c.RedisURL = "http://nope" }, "invalid redis_url"},
		{"zero fetch timeout", func(c *DuelsyncConfig) { c.FetchTimeout = 0 }, "fetch_timeout must be > 0"},
		{"zero announce timeout", func(c *DuelsyncConfig) { c.AnnounceTimeout = 0 }, "announce_timeout must be > 0"},
		{"zero buffer", func(c *DuelsyncConfig) { c.ObserverBuffer = 0 }, "observer_buffer must be >= 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
