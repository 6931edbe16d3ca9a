// Package cli implements the fabricnms command line.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fabricnms/internal/config"
	"fabricnms/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "fabricnms",
	Short: "Settings resolution and management addressing for a switched fabric",
	Long: `fabricnms resolves per-device settings from a layered settings repository,
checks the fleet for VLAN and VNI collisions, and assigns management domains
and addresses to devices as they are onboarded.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: $FABRICNMS_CONFIG, else fabricnms.yaml in ., $XDG_CONFIG_HOME/fabricnms, ~/.config/fabricnms, /etc/fabricnms)")
}

// loadConfig reads the config and builds the logger it names
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, path, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}
	if path != "" {
		logger.Debug("Loaded config", zap.String("path", path))
	}
	return cfg, logger, nil
}
