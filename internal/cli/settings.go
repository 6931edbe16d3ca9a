package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fabricnms/internal/domain"
	"fabricnms/internal/settings"
)

var (
	settingsHostname   string
	settingsDeviceType string
	settingsOrigins    bool
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Print resolved settings",
	Long: `Resolve and print settings as YAML. With only --hostname the device
type is read from the device directory; with --device-type the hostname need
not be registered; with neither the fleet-wide settings are printed.`,
	Args: cobra.NoArgs,
	RunE: runSettings,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.Flags().StringVar(&settingsHostname, "hostname", "", "device hostname")
	settingsCmd.Flags().StringVar(&settingsDeviceType, "device-type", "", "device type: core, dist, access")
	settingsCmd.Flags().BoolVar(&settingsOrigins, "origins", false, "also print the origin of every key")
}

type settingsOutput struct {
	Settings settings.Value  `yaml:"settings"`
	Origins  *settings.Value `yaml:"settings_origin,omitempty"`
}

func runSettings(cmd *cobra.Command, _ []string) error {
	tier, err := domain.ParseDeviceType(settingsDeviceType)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var s *settings.Settings
	if settingsHostname != "" && tier == "" {
		s, err = a.fleet.DeviceSettings(cmd.Context(), settingsHostname)
	} else {
		s, err = a.fleet.Settings(cmd.Context(), settingsHostname, tier)
	}
	if err != nil {
		return err
	}

	out := settingsOutput{Settings: settings.MapValue(s.Tree)}
	if settingsOrigins {
		origins := settings.MapValue(s.OriginTree())
		out.Origins = &origins
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return enc.Close()
}
