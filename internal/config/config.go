package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file serve and validate look for.
const DefaultPath = "duelsync.yml"

// Announcement sinks
const (
	AnnounceLog   = "log"
	AnnounceRedis = "redis"
	AnnounceBoth  = "both"
)

// Duel creators
const (
	CreatorHTTP  = "http"
	CreatorLocal = "local"
)

var instanceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// DuelsyncConfig represents duelsync.yml. Every field can be overridden by
// the matching DUELSYNC_* environment variable.
type DuelsyncConfig struct {
	Instance        string        `yaml:"instance" env:"DUELSYNC_INSTANCE"`
	HTTPAddr        string        `yaml:"http_addr" env:"DUELSYNC_HTTP_ADDR"`
	BotHandle       string        `yaml:"bot_handle" env:"DUELSYNC_BOT_HANDLE"`
	TargetLamports  uint64        `yaml:"target_lamports" env:"DUELSYNC_TARGET_LAMPORTS"`
	ChallengeTTL    time.Duration `yaml:"challenge_ttl" env:"DUELSYNC_CHALLENGE_TTL"`
	SweepInterval   time.Duration `yaml:"sweep_interval" env:"DUELSYNC_SWEEP_INTERVAL"`
	SnapshotURL     string        `yaml:"snapshot_url" env:"DUELSYNC_SNAPSHOT_URL"`
	Creator         string        `yaml:"creator" env:"DUELSYNC_CREATOR"` // "http" or "local"
	RedisURL        string        `yaml:"redis_url,omitempty" env:"DUELSYNC_REDIS_URL"`
	Announce        string        `yaml:"announce" env:"DUELSYNC_ANNOUNCE"` // "log", "redis" or "both"
	FetchTimeout    time.Duration `yaml:"fetch_timeout" env:"DUELSYNC_FETCH_TIMEOUT"`
	AnnounceTimeout time.Duration `yaml:"announce_timeout" env:"DUELSYNC_ANNOUNCE_TIMEOUT"`
	ObserverBuffer  int           `yaml:"observer_buffer" env:"DUELSYNC_OBSERVER_BUFFER"`
}

// Default returns a config with every optional field populated.
func Default() *DuelsyncConfig {
	return &DuelsyncConfig{
		Instance:        "default",
		HTTPAddr:        ":8080",
		BotHandle:       "letsgoduel",
		TargetLamports:  85_000_000_000,
		ChallengeTTL:    24 * time.Hour,
		SweepInterval:   time.Minute,
		Creator:         CreatorHTTP,
		Announce:        AnnounceLog,
		FetchTimeout:    10 * time.Second,
		AnnounceTimeout: 15 * time.Second,
		ObserverBuffer:  64,
	}
}

// Validate performs strict validation on the configuration
func (c *DuelsyncConfig) Validate() error {
	if !instanceNamePattern.MatchString(c.Instance) {
		return fmt.Errorf("invalid instance name: %q (letters, digits, '-' and '_' only)", c.Instance)
	}

	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr is required")
	}

	if c.BotHandle == "" {
		return fmt.Errorf("bot_handle is required")
	}

	if c.TargetLamports == 0 {
		return fmt.Errorf("target_lamports must be > 0")
	}

	if c.ChallengeTTL <= 0 {
		return fmt.Errorf("challenge_ttl must be > 0, got %s", c.ChallengeTTL)
	}

	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be > 0, got %s", c.SweepInterval)
	}

	if c.SnapshotURL == "" {
		return fmt.Errorf("snapshot_url is required")
	}
	if u, err := url.Parse(c.SnapshotURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid snapshot_url: %q", c.SnapshotURL)
	}

	if c.Creator != CreatorHTTP && c.Creator != CreatorLocal {
		return fmt.Errorf("invalid creator: %s (must be 'http' or 'local')", c.Creator)
	}

	switch c.Announce {
	case AnnounceLog:
	case AnnounceRedis, AnnounceBoth:
		if c.RedisURL == "" {
			return fmt.Errorf("announce '%s' requires redis_url", c.Announce)
		}
	default:
		return fmt.Errorf("invalid announce: %s (must be 'log', 'redis', or 'both')", c.Announce)
	}

	if c.RedisURL != "" {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			return fmt.Errorf("invalid redis_url: %w", err)
		}
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be > 0, got %s", c.FetchTimeout)
	}

	if c.AnnounceTimeout <= 0 {
		return fmt.Errorf("announce_timeout must be > 0, got %s", c.AnnounceTimeout)
	}

	if c.ObserverBuffer < 1 {
		return fmt.Errorf("observer_buffer must be >= 1, got %d", c.ObserverBuffer)
	}

	return nil
}

// ApplyEnv overrides fields from DUELSYNC_* environment variables.
// Unset variables leave the current value alone.
func (c *DuelsyncConfig) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads duelsync.yml from path, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*DuelsyncConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return finish(config)
}

// LoadOrDefault is Load, except a missing file falls back to defaults plus
// environment overrides.
func LoadOrDefault(path string) (*DuelsyncConfig, error) {
	config, err := Load(path)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return config, err
	}

	return finish(Default())
}

func finish(config *DuelsyncConfig) (*DuelsyncConfig, error) {
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}
