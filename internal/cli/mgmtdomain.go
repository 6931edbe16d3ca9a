package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var mgmtdomainCmd = &cobra.Command{
	Use:   "mgmtdomain HOSTNAME [HOSTNAME]",
	Short: "Print the management domain for a device or uplink pair",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runMgmtdomain,
}

func init() {
	rootCmd.AddCommand(mgmtdomainCmd)
}

func runMgmtdomain(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	md, err := a.onboarding.ResolveMgmtdomain(cmd.Context(), args...)
	if err != nil {
		return err
	}
	if md == nil {
		return fmt.Errorf("no management domain applies to %v", args)
	}
	return printJSON(cmd.OutOrStdout(), md)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var allocateCmd = &cobra.Command{
	Use:   "allocate HOSTNAME UPLINK [UPLINK]",
	Short: "Allocate a management address for a device from its uplinks' domain",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runAllocate,
}

func init() {
	rootCmd.AddCommand(allocateCmd)
}

func runAllocate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	alloc, err := a.onboarding.Allocate(cmd.Context(), args[0], args[1:])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), alloc)
}
