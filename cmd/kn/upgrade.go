// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kubenow/kn/internal/selfupdate"
)

// upgradeParams bundles the dependencies and flags for the upgrade command,
// enabling the core logic in runUpgrade to be tested without a real Cobra
// command or live network calls.
type upgradeParams struct {
	stdout  io.Writer
	updater *selfupdate.Updater
	target  string // requested version token
	check   bool   // --check mode: resolve the ref without installing
}

// newUpgradeCommand creates the `kn upgrade` command, which replaces the
// running binary with the build published for a release ref.
func newUpgradeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade [version]",
		Short: "Update kn to a published release",
		Long: `Update kn to a published release.

The version argument is "latest" (the newest release, pre-release or not),
"latest-stable" (the newest non-pre-release, the default), or a literal
tag or branch name used verbatim.

The new binary is downloaded next to the current one, checked by running
its version command, and swapped in atomically. The running binary is
never touched unless the downloaded copy passes the check.`,
		Example: `  # Upgrade to the newest stable release
  kn upgrade

  # See which ref an upgrade would install
  kn upgrade --check

  # Upgrade to a specific tag or branch
  kn upgrade v1.2.0`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			checkFlag, _ := cmd.Flags().GetBool("check")

			target := selfupdate.RefLatestStable
			if len(args) > 0 {
				target = args[0]
			}

			client := selfupdate.NewClient(selfupdate.WithUserAgent("kn/" + Version))
			updater := selfupdate.NewUpdater(selfupdate.WithClient(client))

			p := upgradeParams{
				stdout:  cmd.OutOrStdout(),
				updater: updater,
				target:  target,
				check:   checkFlag,
			}

			if err := runUpgrade(cmd.Context(), p); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+formatUpgradeError(err))
				return &ExitError{Code: 1, Err: err}
			}

			return nil
		},
	}

	cmd.Flags().Bool("check", false, "Resolve the target ref without installing")

	return cmd
}

// runUpgrade is the core upgrade logic, separated from Cobra for
// testability. All user-facing output goes through p.stdout.
func runUpgrade(ctx context.Context, p upgradeParams) error {
	if p.check {
		ref, err := p.updater.Resolve(ctx, p.target)
		if err != nil {
			return err
		}
		fmt.Fprintf(p.stdout, "An upgrade to %q would install ref %s.\n", p.target, ref)
		fmt.Fprintln(p.stdout, "Run 'kn upgrade' to install.")
		return nil
	}

	fmt.Fprintf(p.stdout, "Downloading kn %s...\n", p.target)

	ref, err := p.updater.Apply(ctx, p.target)
	if err != nil {
		return err
	}

	fmt.Fprintln(p.stdout, SuccessStyle.Render(fmt.Sprintf("Successfully upgraded to %s", ref)))
	return nil
}

// formatUpgradeError produces a user-friendly error message with remediation
// guidance tailored to the specific failure.
func formatUpgradeError(err error) string {
	var verErr *selfupdate.VerificationError
	if errors.As(err, &verErr) {
		return fmt.Sprintf("the downloaded binary for %q failed its self-check\n\nOutput:\n%s\nThe running binary was left untouched. The ref may not carry a kn build.",
			verErr.Ref, verErr.Output)
	}

	var netErr *selfupdate.NetworkError
	if errors.As(err, &netErr) {
		return fmt.Sprintf("%s\n\nCheck your network connection and try again.", netErr.Error())
	}

	if errors.Is(err, os.ErrPermission) {
		return "insufficient permissions to replace the binary\n\nTry running with elevated privileges:\n  sudo kn upgrade"
	}

	return err.Error()
}
