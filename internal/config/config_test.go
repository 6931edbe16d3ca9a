package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "./settings", cfg.Settings.RepoPath)
	assert.True(t, cfg.Settings.UniqueVLANs)
	assert.True(t, cfg.Settings.Watch)
	assert.Equal(t, 8, cfg.Settings.CheckConcurrency)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Probe.Enabled)
	require.NoError(t, cfg.Validate())
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", filepath.Join(dir, "home"))
	t.Chdir(dir)
	return dir
}

func TestLoad(t *testing.T) {
	t.Run("no file yields defaults", func(t *testing.T) {
		isolate(t)

		cfg, path, err := Load("")
		require.NoError(t, err)
		assert.Empty(t, path)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("explicit file", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
settings:
  repo_path: /srv/settings
  unique_vlans: false
cache:
  backend: redis
  ttl: 5m
  redis:
    addr: redis:6379
    db: 2
probe:
  enabled: true
  timeout: 30s
`), 0644))

		cfg, used, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, path, used)
		assert.Equal(t, "/srv/settings", cfg.Settings.RepoPath)
		assert.False(t, cfg.Settings.UniqueVLANs)
		assert.True(t, cfg.Settings.Watch, "unset keys keep their defaults")
		assert.Equal(t, CacheRedis, cfg.Cache.Backend)
		assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
		assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
		assert.Equal(t, 2, cfg.Cache.Redis.DB)
		assert.Equal(t, "fabricnms:", cfg.Cache.Redis.Prefix)
		assert.True(t, cfg.Probe.Enabled)
		assert.Equal(t, 30*time.Second, cfg.Probe.Timeout)
	})

	t.Run("discovered in working directory", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("http:\n  addr: 127.0.0.1:9000\n"), 0644))

		cfg, used, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, ConfigFileName), used)
		assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0644))
		t.Setenv("FABRICNMS_LOG_LEVEL", "debug")
		t.Setenv("FABRICNMS_SETTINGS_CHECK_CONCURRENCY", "3")

		cfg, _, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, 3, cfg.Settings.CheckConcurrency)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		dir := isolate(t)

		_, _, err := Load(filepath.Join(dir, "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("invalid backend", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("cache:\n  backend: memcached\n"), 0644))

		_, _, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "memcached")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty repo path", func(c *Config) { c.Settings.RepoPath = "" }},
		{"zero concurrency", func(c *Config) { c.Settings.CheckConcurrency = 0 }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"redis without addr", func(c *Config) {
			c.Cache.Backend = CacheRedis
			c.Cache.Redis.Addr = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadSearch(t *testing.T) {
	write := func(t *testing.T, path, body string) {
		t.Helper()
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}

	t.Run("env var names the file", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "elsewhere.yaml")
		write(t, path, "log:\n  level: error\n")
		write(t, filepath.Join(dir, ConfigFileName), "log:\n  level: warn\n")
		t.Setenv(EnvConfigPath, path)

		cfg, used, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, path, used)
		assert.Equal(t, "error", cfg.Log.Level)
	})

	t.Run("env var pointing nowhere", func(t *testing.T) {
		dir := isolate(t)
		t.Setenv(EnvConfigPath, filepath.Join(dir, "absent.yaml"))

		_, _, err := Load("")
		require.Error(t, err)
	})

	t.Run("xdg", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "xdg", ConfigDirName, ConfigFileName)
		write(t, path, "http:\n  addr: 127.0.0.1:9100\n")

		cfg, used, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, path, used)
		assert.Equal(t, "127.0.0.1:9100", cfg.HTTP.Addr)
	})

	t.Run("working directory wins over home", func(t *testing.T) {
		dir := isolate(t)
		write(t, filepath.Join(dir, "home", ".config", ConfigDirName, ConfigFileName), "log:\n  level: error\n")
		write(t, filepath.Join(dir, ConfigFileName), "log:\n  level: warn\n")

		cfg, used, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, ConfigFileName), used)
		assert.Equal(t, "warn", cfg.Log.Level)
	})
}

func TestDefaultConfigPath(t *testing.T) {
	dir := isolate(t)
	assert.Equal(t, filepath.Join(dir, "xdg", ConfigDirName, ConfigFileName), DefaultConfigPath())

	t.Setenv("XDG_CONFIG_HOME", "")
	assert.Equal(t, filepath.Join(dir, "home", ".config", ConfigDirName, ConfigFileName), DefaultConfigPath())
}

func TestSaveRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Settings.RepoPath = "/data/settings"
	cfg.Cache.TTL = time.Minute
	require.NoError(t, cfg.Save(path))

	loaded, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
