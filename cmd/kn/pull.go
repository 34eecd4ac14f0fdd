// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/kubenow/kn/internal/config"
	"github.com/kubenow/kn/internal/container"
)

// enginePull asks the container runtime to pre-fetch the configured
// provisioner image. A test seam over the runtime collaborator.
//
//nolint:gochecknoglobals // Test seam.
var enginePull = func(ctx context.Context, cfg *config.EffectiveConfig, stdout, stderr io.Writer) error {
	engine := container.New(cfg.Engine.String())
	return engine.Pull(ctx, cfg.ProvisionerImage, stdout, stderr)
}

// newPullCommand creates the `kn pull` command, which pre-fetches the
// configured provisioner image so later commands start without a download
// pause.
func newPullCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Pre-fetch the configured provisioner container image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			logger.Info("pulling provisioner image", "image", cfg.ProvisionerImage, "engine", cfg.Engine)

			if err := enginePull(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			return nil
		},
	}
}
