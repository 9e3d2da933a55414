// Command vcctl is the operator CLI for the score credential issuer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vcctl",
		Short: "Operator tooling for the score credential issuer",
		Long: `Operator tooling for the score credential issuer.

Normalizes and signs address links, mints local session tokens and
verifies issued credentials against the platform root key.`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newChecksumCmd(),
		newLinkMessageCmd(),
		newSignLinkCmd(),
		newVerifyCmd(),
		newRootKeyCmd(),
		newTokenCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
