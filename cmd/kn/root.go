// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for kn.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/kubenow/kn/internal/config"
	"github.com/kubenow/kn/internal/preset"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug logging
	verbose bool
	// presetName names a configuration bundle to source before explicit flags
	presetName string
	// dockerImage overrides the provisioner container image
	dockerImage string
	// branchName overrides the deployment repository branch
	branchName string
	// pluginRepo sets the plugin repository URL
	pluginRepo string
	// pluginRepoBranch sets the plugin repository branch
	pluginRepoBranch string

	// cfg is the effective configuration for this invocation, resolved by
	// setupConfig before any subcommand runs and read-only afterwards.
	cfg *config.EffectiveConfig

	// logger is the shared CLI logger; verbose mode lowers it to debug.
	logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "kn"})

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "kn",
		Short: "Deploy Kubernetes clusters through a containerized provisioner",
		Long: TitleStyle.Render("kn") + SubtitleStyle.Render(" - Deploy Kubernetes clusters through a containerized provisioner") + `

kn drives a provisioner container holding Terraform, Ansible, and the
cloud-provider CLIs. Cluster configuration lives in a project directory
that kn mounts into the container for every command.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Initialize a project:   kn init <gce|aws|openstack|azure> my-cluster
  2. Edit terraform.tfvars inside the new directory
  3. Deploy from the project directory: kn apply

` + SubtitleStyle.Render("Examples:") + `
  kn init gce my-cluster    Create a project for Google Cloud
  kn apply                  Deploy or update the cluster
  kn kubectl get nodes      Run kubectl against the cluster
  kn destroy                Tear the cluster down`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			if len(args) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("no command specified"))
				fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
				return nil
			}

			err := fmt.Errorf("%q is not a valid command", args[0])
			fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+err.Error())
			fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
			return &ExitError{Code: 1, Err: err}
		},
	}
)

func init() {
	// Assigned here rather than in the rootCmd literal to avoid an
	// initialization cycle (setupConfig refers to rootCmd).
	rootCmd.PersistentPreRunE = setupConfig

	// Global flags. The -rb shorthand for --plugin-repo-branch is rewritten
	// to the long form by splitArgs before parsing, since pflag shorthands
	// are single characters.
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&presetName, "preset", "p", "", "configuration preset to apply")
	rootCmd.PersistentFlags().StringVarP(&dockerImage, "docker-image", "i", "", "provisioner container image")
	rootCmd.PersistentFlags().StringVarP(&branchName, "branch", "b", "", "deployment repository branch or tag")
	rootCmd.PersistentFlags().StringVarP(&pluginRepo, "plugin-repo", "r", "", "plugin repository URL")
	rootCmd.PersistentFlags().StringVar(&pluginRepoBranch, "plugin-repo-branch", "", "plugin repository branch")

	// Add subcommands
	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newUpgradeCommand())
	rootCmd.AddCommand(newPullCommand())
	for _, spec := range passthroughSpecs {
		rootCmd.AddCommand(newPassthroughCommand(spec))
	}
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the rootCmd.
//
// Option flags all precede the subcommand; everything after the subcommand
// token is handed to it untouched. Execute therefore parses the leading
// region itself and gives Cobra only the subcommand and its pass-through
// arguments, so tool flags like `kn kubectl get pods -o wide` are never
// interpreted here.
func Execute() {
	flags, rest := splitArgs(os.Args[1:])

	if err := rootCmd.PersistentFlags().Parse(flags); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		fmt.Fprint(os.Stderr, rootCmd.UsageString())
		os.Exit(1)
	}
	if rest == nil {
		rest = []string{}
	}
	rootCmd.SetArgs(rest)

	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// setupConfig resolves the effective configuration before any subcommand
// runs: built-in defaults, then the project configuration file, then KN_*
// environment variables, then the selected preset, then explicit flags.
// Later sources win; a preset never overrides an explicit flag because the
// flags are applied after it.
func setupConfig(*cobra.Command, []string) error {
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	resolved, err := config.Resolve(config.Options{})
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	cfg = resolved

	flags := rootCmd.PersistentFlags()

	if flags.Changed("preset") {
		dir, dirErr := preset.Dir()
		if dirErr != nil {
			return &ExitError{Code: 1, Err: dirErr}
		}
		overlay, loadErr := preset.Load(dir, presetName)
		if loadErr != nil {
			return &ExitError{Code: 1, Err: loadErr}
		}
		if applyErr := cfg.Apply(overlay); applyErr != nil {
			return &ExitError{Code: 1, Err: applyErr}
		}
		logger.Debug("applied preset", "preset", presetName, "dir", dir)
	}

	if flags.Changed("branch") {
		cfg.Branch = branchName
	}
	if flags.Changed("docker-image") {
		cfg.ProvisionerImage = dockerImage
	}
	if flags.Changed("plugin-repo") {
		if setErr := cfg.SetPluginRepo(pluginRepo); setErr != nil {
			return &ExitError{Code: 1, Err: setErr}
		}
	}
	if flags.Changed("plugin-repo-branch") {
		cfg.PluginRepoBranch = pluginRepoBranch
	}

	logger.Debug("resolved configuration",
		"repository", cfg.Repository,
		"branch", cfg.Branch,
		"image", cfg.ProvisionerImage,
		"engine", cfg.Engine,
	)

	return nil
}
