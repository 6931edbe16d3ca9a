package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// EnvConfigPath names an explicit config file, used like --config
	EnvConfigPath = "FABRICNMS_CONFIG"
	// EnvPrefix prefixes environment overrides such as FABRICNMS_HTTP_ADDR
	EnvPrefix = "FABRICNMS"
	// ConfigName is the config file name without extension; every search
	// directory holds fabricnms.yaml
	ConfigName     = "fabricnms"
	ConfigFileName = ConfigName + ".yaml"
	// ConfigDirName is the directory under the user and system config roots
	ConfigDirName = "fabricnms"
)

// searchDirs lists the directories viper looks in when no file is named,
// most specific first
func searchDirs() []string {
	dirs := []string{"."}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, ConfigDirName))
	}
	if home := os.Getenv("HOME"); home != "" {
		dirs = append(dirs, filepath.Join(home, ".config", ConfigDirName))
	}
	return append(dirs, filepath.Join("/etc", ConfigDirName))
}

// readConfig points v at path, $FABRICNMS_CONFIG or the first fabricnms.yaml
// found in searchDirs, and reads it. It returns the file used, which is
// empty when the search found nothing. A named file that is missing is an
// error.
func readConfig(v *viper.Viper, path string) (string, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		for _, dir := range searchDirs() {
			v.AddConfigPath(dir)
		}
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return "", nil
	}
	if err != nil {
		return path, fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// DefaultConfigPath returns where init writes a new config file: the user
// config directory, or the working directory without one
func DefaultConfigPath() string {
	if dirs := searchDirs(); len(dirs) > 2 {
		return filepath.Join(dirs[1], ConfigFileName)
	}
	return ConfigFileName
}

// EnsureConfigDir creates the directory holding configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}
