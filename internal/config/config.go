// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultRepository is the upstream deployment repository cloned by the
	// provisioner container.
	DefaultRepository = "https://github.com/kubenow/KubeNow"

	// DefaultBranch is the deployment repository branch used when no other
	// source names one.
	DefaultBranch = "master"

	// DefaultProvisionerImage is the provisioner container image used when
	// neither the project file, the environment, a preset, nor a flag
	// supplies one. It keeps the invariant that the image reference is
	// always non-empty at dispatch time.
	DefaultProvisionerImage = "kubenow/provisioners:" + DefaultBranch

	// ProjectConfigFileName is the project-local configuration file the
	// resolver reads the provisioner image reference from.
	ProjectConfigFileName = "terraform.tfvars"
)

const (
	// ContainerEngineDocker invokes the provisioner through the docker CLI.
	ContainerEngineDocker ContainerEngine = "docker"
	// ContainerEnginePodman invokes the provisioner through the podman CLI.
	ContainerEnginePodman ContainerEngine = "podman"
)

var (
	// ErrInvalidContainerEngine is the sentinel error wrapped by InvalidContainerEngineError.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
)

type (
	// ContainerEngine names the container runtime CLI used to launch the
	// provisioner container.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value
	// is not a recognized runtime.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// EffectiveConfig is the resolved runtime configuration for one kn
	// invocation. It is constructed once by Resolve, mutated only while the
	// command router consumes option flags, and read-only afterwards.
	EffectiveConfig struct {
		// Repository is the deployment repository URL handed to the
		// provisioner container.
		Repository string

		// Branch is the deployment repository branch or version tag.
		Branch string

		// PluginRepo is the plugin repository URL, empty when no plugin is
		// in use.
		PluginRepo string

		// PluginRepoBranch is the plugin repository branch.
		PluginRepoBranch string

		// PluginName identifies the plugin, normally derived from
		// PluginRepo via PluginNameFromRepo.
		PluginName string

		// ProvisionerImage is the provisioner container image reference.
		// Invariant: non-empty once Resolve returns.
		ProvisionerImage string

		// Engine selects the container runtime CLI (docker or podman).
		Engine ContainerEngine
	}

	// Overlay is a partial configuration sourced from a preset bundle.
	// Non-empty fields overwrite the corresponding EffectiveConfig fields;
	// empty fields leave them untouched.
	Overlay struct {
		Repository       string `toml:"repository"`
		Branch           string `toml:"branch"`
		PluginRepo       string `toml:"plugin_repo"`
		PluginRepoBranch string `toml:"plugin_repo_branch"`
		PluginName       string `toml:"plugin_name"`
		ProvisionerImage string `toml:"provisioner_image"`
		ContainerEngine  string `toml:"container_engine"`
	}

	// Options controls where Resolve looks for the project configuration
	// file. The zero value resolves against the current directory.
	Options struct {
		// ProjectDir is the directory holding the project configuration
		// file. Empty means the current working directory.
		ProjectDir string
	}
)

// Error implements the error interface.
func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: docker, podman)", e.Value)
}

// Unwrap returns ErrInvalidContainerEngine so callers can use errors.Is for
// programmatic detection.
func (e *InvalidContainerEngineError) Unwrap() error { return ErrInvalidContainerEngine }

// Validate returns an error if the ContainerEngine is not a recognized runtime.
func (c ContainerEngine) Validate() error {
	switch c {
	case ContainerEngineDocker, ContainerEnginePodman:
		return nil
	default:
		return &InvalidContainerEngineError{Value: c}
	}
}

// String returns the string representation of the ContainerEngine.
func (c ContainerEngine) String() string { return string(c) }

// Resolve builds the EffectiveConfig from built-in defaults, the optional
// project configuration file, and KN_* environment variables, in that
// precedence order (lowest to highest). Option flags and presets are applied
// afterwards by the command router, through Apply and the field setters.
//
// The environment is read exactly once here; no component reads process
// environment configuration after Resolve returns.
func Resolve(opts Options) (*EffectiveConfig, error) {
	v := viper.New()

	v.SetDefault("repository", DefaultRepository)
	v.SetDefault("branch", DefaultBranch)
	v.SetDefault("plugin_repo", "")
	v.SetDefault("plugin_repo_branch", "")
	v.SetDefault("plugin_name", "")
	v.SetDefault("provisioner_image", DefaultProvisionerImage)
	v.SetDefault("container_engine", string(ContainerEngineDocker))

	// Env bindings sit above the config-file layer in viper's precedence
	// ladder, matching the resolution order: default < file < environment.
	// Viper ignores variables set to the empty string, which preserves the
	// rule that a source only overrides with a non-empty value.
	envBindings := map[string]string{
		"repository":         "KN_REPO",
		"branch":             "KN_BRANCH",
		"plugin_repo":        "KN_PLUGIN_REPO",
		"plugin_repo_branch": "KN_PLUGIN_REPO_BRANCH",
		"plugin_name":        "KN_PLUGIN_NAME",
		"provisioner_image":  "KN_PROVISIONER_IMAGE",
		"container_engine":   "KN_CONTAINER_ENGINE",
	}
	for key, envVar := range envBindings {
		if err := v.BindEnv(key, envVar); err != nil {
			return nil, fmt.Errorf("binding %s: %w", envVar, err)
		}
	}

	projectFile := filepath.Join(opts.ProjectDir, ProjectConfigFileName)
	image, found, err := ProjectImage(projectFile)
	if err != nil {
		return nil, err
	}
	if found {
		if mergeErr := v.MergeConfigMap(map[string]any{"provisioner_image": image}); mergeErr != nil {
			return nil, fmt.Errorf("merging project configuration: %w", mergeErr)
		}
	}

	cfg := &EffectiveConfig{
		Repository:       v.GetString("repository"),
		Branch:           v.GetString("branch"),
		PluginRepo:       v.GetString("plugin_repo"),
		PluginRepoBranch: v.GetString("plugin_repo_branch"),
		PluginName:       v.GetString("plugin_name"),
		ProvisionerImage: v.GetString("provisioner_image"),
		Engine:           ContainerEngine(v.GetString("container_engine")),
	}

	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}

	// The plugin name follows the repository URL unless an explicit name
	// was supplied alongside it.
	if cfg.PluginRepo != "" && cfg.PluginName == "" {
		name, nameErr := PluginNameFromRepo(cfg.PluginRepo)
		if nameErr != nil {
			return nil, nameErr
		}
		cfg.PluginName = name
	}

	return cfg, nil
}

// Apply overlays a preset bundle onto the configuration. Only non-empty
// overlay fields overwrite; explicit flags applied later still win.
func (c *EffectiveConfig) Apply(o Overlay) error {
	if o.Repository != "" {
		c.Repository = o.Repository
	}
	if o.Branch != "" {
		c.Branch = o.Branch
	}
	if o.PluginRepo != "" {
		if err := c.SetPluginRepo(o.PluginRepo); err != nil {
			return err
		}
	}
	if o.PluginRepoBranch != "" {
		c.PluginRepoBranch = o.PluginRepoBranch
	}
	if o.PluginName != "" {
		c.PluginName = o.PluginName
	}
	if o.ProvisionerImage != "" {
		c.ProvisionerImage = o.ProvisionerImage
	}
	if o.ContainerEngine != "" {
		engine := ContainerEngine(o.ContainerEngine)
		if err := engine.Validate(); err != nil {
			return err
		}
		c.Engine = engine
	}
	return nil
}

// SetPluginRepo records the plugin repository URL and derives the plugin
// name from it. A URL from which no name can be derived is a hard error.
func (c *EffectiveConfig) SetPluginRepo(rawURL string) error {
	name, err := PluginNameFromRepo(rawURL)
	if err != nil {
		return err
	}
	c.PluginRepo = rawURL
	c.PluginName = name
	return nil
}
