// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCommand creates the `kn version` command. The first output line
// doubles as the health marker the self-updater checks on a freshly
// downloaded binary, so its shape must stay stable.
func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the kn version and the configured provisioner image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "kn version %s\n", cfg.Branch)
			fmt.Fprintf(cmd.OutOrStdout(), "provisioner image: %s\n", cfg.ProvisionerImage)
			return nil
		},
	}
}
