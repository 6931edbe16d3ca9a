package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkUniqueVLANs bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the fleet for VLAN and VNI collisions",
	Long: `Resolve the settings of every managed device and verify that no VNI,
VLAN id or VLAN name collides. Exits non-zero on the first collision.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkUniqueVLANs, "unique-vlans", true, "require VLAN ids to be unique across the fleet (default from settings.unique_vlans)")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	unique := a.cfg.Settings.UniqueVLANs
	if cmd.Flags().Changed("unique-vlans") {
		unique = checkUniqueVLANs
	}

	if err := a.fleet.Check(cmd.Context(), unique); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "no collisions found")
	return nil
}
