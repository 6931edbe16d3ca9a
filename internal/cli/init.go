package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fabricnms/internal/config"
	"fabricnms/internal/settings"
)

var (
	initWriteConfig bool
	initDevices     []string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the settings repository skeleton",
	Long: `Create every missing file of the settings repository as an empty layer.
Existing files are left alone. With --device, also create the per-device
directory of each named host.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initWriteConfig, "write-config", false, "write a default config file if none exists")
	initCmd.Flags().StringSliceVar(&initDevices, "device", nil, "hostname to create a device directory for (repeatable)")
}

func runInit(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	if initWriteConfig {
		path := cfgFile
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "config %s exists, leaving it alone\n", path)
		} else {
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote config %s\n", path)
		}
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	root := cfg.Settings.RepoPath
	if err := settings.InitRepository(root); err != nil {
		return fmt.Errorf("init settings repository: %w", err)
	}
	for _, hostname := range initDevices {
		if err := settings.InitDevice(root, hostname); err != nil {
			return fmt.Errorf("init device %s: %w", hostname, err)
		}
	}
	if err := settings.VerifyDirStructure(root); err != nil {
		return err
	}
	fmt.Fprintf(out, "settings repository ready at %s\n", root)
	return nil
}
