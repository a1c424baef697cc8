package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHATMIRROR_"

// Config represents the global ~/.chatmirror/config.toml.
type Config struct {
	DefaultSession   string        `toml:"default_session" env:"DEFAULT_SESSION"`
	UserID           string        `toml:"user_id" env:"USER_ID"`
	APIBaseURL       string        `toml:"api_base_url" env:"API_BASE_URL"`
	PushURL          string        `toml:"push_url" env:"PUSH_URL"`
	Token            string        `toml:"token" env:"TOKEN"`
	LogLevel         string        `toml:"log_level" env:"LOG_LEVEL"`
	MetricsAddr      string        `toml:"metrics_addr" env:"METRICS_ADDR"`
	SnapshotInterval time.Duration `toml:"snapshot_interval" env:"SNAPSHOT_INTERVAL"`
	TypingTTL        time.Duration `toml:"typing_ttl" env:"TYPING_TTL"`
	OperationTimeout time.Duration `toml:"operation_timeout" env:"OPERATION_TIMEOUT"`
	RestoreSnapshot  bool          `toml:"restore_snapshot" env:"RESTORE_SNAPSHOT"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel:         "info",
		SnapshotInterval: 30 * time.Second,
		OperationTimeout: 30 * time.Second,
		RestoreSnapshot:  true,
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve loads the file at path if it exists, falls back to defaults if it
// does not, and applies environment overrides on top.
func Resolve(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CHATMIRROR_* environment variables. Unset
// variables leave the current value alone.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
