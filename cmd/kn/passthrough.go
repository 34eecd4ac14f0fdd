// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kubenow/kn/internal/config"
	"github.com/kubenow/kn/internal/container"
	"github.com/kubenow/kn/internal/launch"
	"github.com/kubenow/kn/internal/precheck"
	"github.com/kubenow/kn/pkg/types"
)

type (
	// passthroughSpec describes one subcommand that runs inside the
	// provisioner container: which entry point it maps to and whether the
	// project directory must hold the deployment artifacts first.
	passthroughSpec struct {
		use      string
		short    string
		prefixed bool // entry point is kn-<use> rather than the bare name
		precheck bool // project directory artifacts must exist
	}
)

// passthroughSpecs is the routing table for container-backed subcommands.
// Cluster-lifecycle operations map to kn-prefixed entry points and need a
// populated project directory; tool passthroughs invoke the tool by name.
// Cloud CLIs, bash, and git may run anywhere.
var passthroughSpecs = []passthroughSpec{
	{use: "apply", short: "Deploy or update the cluster", prefixed: true, precheck: true},
	{use: "destroy", short: "Tear down the cluster and its cloud resources", prefixed: true, precheck: true},
	{use: "provision", short: "Re-run provisioning on the existing cluster", prefixed: true, precheck: true},
	{use: "scale", short: "Scale the cluster's node pools", prefixed: true, precheck: true},
	{use: "ssh", short: "Open an SSH session to a cluster node", prefixed: true, precheck: true},
	{use: "kubetoken", short: "Generate a Kubernetes dashboard token", prefixed: true},
	{use: "kubectl", short: "Run kubectl against the cluster", precheck: true},
	{use: "helm", short: "Run helm against the cluster", precheck: true},
	{use: "terraform", short: "Run terraform in the project directory", precheck: true},
	{use: "ansible", short: "Run ansible in the project directory", precheck: true},
	{use: "ansible-playbook", short: "Run ansible-playbook in the project directory", precheck: true},
	{use: "gcloud", short: "Run the Google Cloud CLI"},
	{use: "openstack", short: "Run the OpenStack CLI"},
	{use: "az", short: "Run the Azure CLI"},
	{use: "bash", short: "Open a shell inside the provisioner container"},
	{use: "git", short: "Run git inside the provisioner container"},
}

// entryPoint returns the executable name invoked inside the container.
func (s passthroughSpec) entryPoint() string {
	if s.prefixed {
		return "kn-" + s.use
	}
	return s.use
}

// containerRun launches the provisioner container with the given execution
// context. A test seam over the execution-context builder.
//
//nolint:gochecknoglobals // Test seam.
var containerRun = func(ctx context.Context, cfg *config.EffectiveConfig, hostDir, entryPoint string, args []string) (types.ExitCode, error) {
	engine := container.New(cfg.Engine.String())
	builder := launch.NewBuilder(engine)
	return builder.Run(ctx, cfg, hostDir, entryPoint, args)
}

// runInContainer invokes the provisioner container and translates its
// outcome: infrastructure failures exit 1, the contained process's own exit
// status is propagated verbatim.
func runInContainer(ctx context.Context, hostDir, entryPoint string, args []string) error {
	logger.Debug("invoking provisioner container",
		"image", cfg.ProvisionerImage,
		"entrypoint", entryPoint,
		"dir", hostDir,
	)

	code, err := containerRun(ctx, cfg, hostDir, entryPoint, args)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// newPassthroughCommand creates a Cobra command that forwards its arguments
// untouched into the provisioner container. Flag parsing is disabled so the
// wrapped tool's own flags survive the trip.
func newPassthroughCommand(spec passthroughSpec) *cobra.Command {
	return &cobra.Command{
		Use:                spec.use,
		Short:              spec.short,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			if spec.precheck {
				if err := precheck.Verify("."); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+err.Error())
					return &ExitError{Code: 1, Err: err}
				}
			}

			return runInContainer(cmd.Context(), ".", spec.entryPoint(), args)
		},
	}
}
