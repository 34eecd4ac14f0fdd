// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

// validClouds enumerates the cloud providers the provisioner container
// ships templates for.
var validClouds = []string{"aws", "azure", "gce", "openstack"}

// newInitCommand creates the `kn init` command, which materializes a new
// project directory and lets the provisioner's kn-init entry point populate
// it with templates for the chosen cloud.
func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init <cloud> <dir>",
		Short: "Initialize a new cluster project directory",
		Example: `  # Create a Google Cloud project in ./my-cluster
  kn init gce my-cluster

  # Create an OpenStack project with an absolute path
  kn init openstack /work/clusters/staging`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			cloud := args[0]

			// Validate the cloud before touching the filesystem so a typo
			// never leaves a half-created directory behind.
			if !slices.Contains(validClouds, cloud) {
				err := fmt.Errorf("%q is not a valid cloud (valid: %s)", cloud, strings.Join(validClouds, ", "))
				fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+err.Error())
				return &ExitError{Code: 1, Err: err}
			}

			dir, err := filepath.Abs(args[1])
			if err != nil {
				return &ExitError{Code: 1, Err: fmt.Errorf("resolving project directory: %w", err)}
			}

			// Refuse to reuse an existing path, whether file or directory:
			// kn-init assumes an empty target.
			if _, statErr := os.Lstat(dir); statErr == nil {
				existsErr := fmt.Errorf("%s already exists", dir)
				fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+existsErr.Error())
				return &ExitError{Code: 1, Err: existsErr}
			} else if !errors.Is(statErr, fs.ErrNotExist) {
				return &ExitError{Code: 1, Err: fmt.Errorf("checking project directory: %w", statErr)}
			}

			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return &ExitError{Code: 1, Err: fmt.Errorf("creating project directory: %w", mkErr)}
			}

			logger.Info("initializing project", "cloud", cloud, "dir", dir)

			if runErr := runInContainer(cmd.Context(), dir, "kn-init", []string{cloud}); runErr != nil {
				return runErr
			}

			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Project initialized in %s", dir)))
			return nil
		},
	}
}
