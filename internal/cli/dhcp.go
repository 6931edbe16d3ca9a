package cli

import (
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"

	"fabricnms/internal/domain"
)

var dhcpCommitCmd = &cobra.Command{
	Use:   "dhcp-commit MAC IP PLATFORM",
	Short: "Register a device seen by the DHCP server",
	Long: `Hook for the DHCP server's commit event. Registers an unknown MAC as a
new device in DHCP_BOOT state; a MAC already in the directory is left alone.`,
	Args: cobra.ExactArgs(3),
	RunE: runDHCPCommit,
}

func init() {
	rootCmd.AddCommand(dhcpCommitCmd)
}

type dhcpOutput struct {
	Created bool           `json:"created"`
	Device  *domain.Device `json:"device"`
}

func runDHCPCommit(cmd *cobra.Command, args []string) error {
	ip, err := netip.ParseAddr(args[1])
	if err != nil {
		return fmt.Errorf("invalid IP %q: %w", args[1], err)
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	dev, created, err := a.onboarding.RegisterDHCP(cmd.Context(), args[0], ip, args[2])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), dhcpOutput{Created: created, Device: dev})
}
