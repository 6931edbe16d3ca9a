// Package config provides configuration management for fabricnms.
//
// Values come from, in increasing precedence: built-in defaults, the
// config file, and FABRICNMS_* environment variables (FABRICNMS_HTTP_ADDR
// overrides http.addr).
//
// The config file is the --config flag, else $FABRICNMS_CONFIG, else the
// first fabricnms.yaml viper finds in the working directory,
// $XDG_CONFIG_HOME/fabricnms, ~/.config/fabricnms or /etc/fabricnms.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load finds and loads the config file, or returns defaults if none found.
// A non-empty path is used instead of searching.
func Load(path string) (*Config, string, error) {
	v := newViper()
	used, err := readConfig(v, path)
	if err != nil {
		return nil, used, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, used, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, used, err
	}
	return &cfg, used, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key, which also makes each one
// overridable from the environment
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("settings.repo_path", d.Settings.RepoPath)
	v.SetDefault("settings.unique_vlans", d.Settings.UniqueVLANs)
	v.SetDefault("settings.watch", d.Settings.Watch)
	v.SetDefault("settings.check_concurrency", d.Settings.CheckConcurrency)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.redis.addr", d.Cache.Redis.Addr)
	v.SetDefault("cache.redis.password", d.Cache.Redis.Password)
	v.SetDefault("cache.redis.db", d.Cache.Redis.DB)
	v.SetDefault("cache.redis.prefix", d.Cache.Redis.Prefix)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("probe.enabled", d.Probe.Enabled)
	v.SetDefault("probe.timeout", d.Probe.Timeout)
	v.SetDefault("probe.min_prefix_len", d.Probe.MinPrefixLen)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Settings: SettingsConfig{
			RepoPath:         "./settings",
			UniqueVLANs:      true,
			Watch:            true,
			CheckConcurrency: 8,
		},
		Database: DatabaseConfig{Path: "./fabricnms.db"},
		Cache: CacheConfig{
			Backend: CacheMemory,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "fabricnms:",
			},
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Probe: ProbeConfig{
			Timeout:      2 * time.Minute,
			MinPrefixLen: 20,
		},
	}
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	if c.Settings.RepoPath == "" {
		return fmt.Errorf("settings.repo_path is required")
	}
	if c.Settings.CheckConcurrency < 1 {
		return fmt.Errorf("settings.check_concurrency must be at least 1, got %d", c.Settings.CheckConcurrency)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q (want %s or %s)", c.Cache.Backend, CacheMemory, CacheRedis)
	}
	return nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
