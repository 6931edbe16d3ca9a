package config

import "time"

// Config is the root configuration structure
type Config struct {
	Settings SettingsConfig `mapstructure:"settings" yaml:"settings"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Probe    ProbeConfig    `mapstructure:"probe" yaml:"probe"`
}

// SettingsConfig locates the settings repository and tunes resolution
type SettingsConfig struct {
	RepoPath         string `mapstructure:"repo_path" yaml:"repo_path"`
	UniqueVLANs      bool   `mapstructure:"unique_vlans" yaml:"unique_vlans"`
	Watch            bool   `mapstructure:"watch" yaml:"watch"`
	CheckConcurrency int    `mapstructure:"check_concurrency" yaml:"check_concurrency"`
}

// DatabaseConfig holds the device directory location
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// CacheConfig selects the settings cache backend
type CacheConfig struct {
	Backend string        `mapstructure:"backend" yaml:"backend"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

// HTTPConfig holds the API listener settings
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// ProbeConfig configures live-host probing of management subnets
type ProbeConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MinPrefixLen int           `mapstructure:"min_prefix_len" yaml:"min_prefix_len"`
}
