// SPDX-License-Identifier: MPL-2.0

// Package launch assembles the execution context handed to the provisioner
// container: the environment allow-list, the project mount, and the entry
// point, then invokes the container synchronously.
package launch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/kubenow/kn/internal/config"
	"github.com/kubenow/kn/internal/container"
	"github.com/kubenow/kn/pkg/types"
)

const (
	// MountPoint is the fixed in-container path the host project directory
	// is mounted at; it doubles as the container's working directory.
	MountPoint = "/kn_config"

	// envUserID and envGroupIDs are the identity variables the provisioner
	// container uses to drop privileges to the invoking host user.
	envUserID   = "LOCAL_USER_ID"
	envGroupIDs = "LOCAL_GROUP_IDS"
)

// ForwardPrefixes is the environment allow-list: every host variable whose
// name starts with one of these prefixes is visible inside the container.
// The families cover cloud credentials (GOOGLE_, AWS_, OS_, ARM_, AZURE_),
// tool options (TF_, ANSIBLE_), and kn's own variables (KN_).
var ForwardPrefixes = []string{
	"ANSIBLE_",
	"ARM_",
	"AWS_",
	"AZURE_",
	"GOOGLE_",
	"KN_",
	"OS_",
	"TF_",
}

type (
	// Runner is the container collaborator invoked with the assembled
	// context. *container.Engine satisfies it.
	Runner interface {
		Run(ctx context.Context, opts container.RunOptions) (types.ExitCode, error)
	}

	// Context is the materialized invocation descriptor for one container
	// run. It is built fresh per invocation and discarded afterwards.
	Context struct {
		Image      string
		HostDir    string // absolute host directory mounted at MountPoint
		EntryPoint string
		Args       []string
		Env        []container.EnvVar
	}

	// BuilderOption configures a Builder.
	BuilderOption func(*Builder)

	// Builder constructs execution contexts from the effective
	// configuration and runs them. Host introspection (environment, user
	// identity, terminal detection) is injectable for tests.
	Builder struct {
		runner  Runner
		environ func() []string
		uid     func() int
		groups  func() ([]int, error)
		tty     bool

		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer
	}
)

// WithEnviron overrides the host environment source.
func WithEnviron(fn func() []string) BuilderOption {
	return func(b *Builder) {
		b.environ = fn
	}
}

// WithIdentity overrides the host user and group id sources.
func WithIdentity(uid func() int, groups func() ([]int, error)) BuilderOption {
	return func(b *Builder) {
		b.uid = uid
		b.groups = groups
	}
}

// WithTTY overrides terminal detection.
func WithTTY(tty bool) BuilderOption {
	return func(b *Builder) {
		b.tty = tty
	}
}

// WithStdio overrides the standard streams attached to the container.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) BuilderOption {
	return func(b *Builder) {
		b.stdin = stdin
		b.stdout = stdout
		b.stderr = stderr
	}
}

// NewBuilder creates a Builder that invokes containers through runner. By
// default the real host environment, user identity, and terminal state are
// used, and the container is attached to the process's own streams.
func NewBuilder(runner Runner, opts ...BuilderOption) *Builder {
	b := &Builder{
		runner:  runner,
		environ: os.Environ,
		uid:     os.Getuid,
		groups:  os.Getgroups,
		tty:     term.IsTerminal(int(os.Stdin.Fd())),
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Context assembles the invocation descriptor: the host directory resolved
// to an absolute path, and the environment composed of the prefix
// allow-list, the resolved configuration, and the identity variables.
func (b *Builder) Context(cfg *config.EffectiveConfig, hostDir, entryPoint string, args []string) (*Context, error) {
	abs, err := filepath.Abs(hostDir)
	if err != nil {
		return nil, fmt.Errorf("resolving host directory %q: %w", hostDir, err)
	}

	env, err := b.buildEnv(cfg)
	if err != nil {
		return nil, err
	}

	return &Context{
		Image:      cfg.ProvisionerImage,
		HostDir:    abs,
		EntryPoint: entryPoint,
		Args:       args,
		Env:        env,
	}, nil
}

// Invoke runs the context's container synchronously and returns the
// contained process's exit status verbatim.
func (b *Builder) Invoke(ctx context.Context, ec *Context) (types.ExitCode, error) {
	opts := container.RunOptions{
		Image:       ec.Image,
		WorkDir:     MountPoint,
		Remove:      true,
		Interactive: true,
		TTY:         b.tty,
		Env:         ec.Env,
		Volumes: []container.VolumeMount{
			{HostPath: ec.HostDir, ContainerPath: MountPoint, Relabel: true},
		},
		Command: append([]string{ec.EntryPoint}, ec.Args...),
		Stdin:   b.stdin,
		Stdout:  b.stdout,
		Stderr:  b.stderr,
	}

	return b.runner.Run(ctx, opts)
}

// Run is the common path: build the context and invoke it.
func (b *Builder) Run(ctx context.Context, cfg *config.EffectiveConfig, hostDir, entryPoint string, args []string) (types.ExitCode, error) {
	ec, err := b.Context(cfg, hostDir, entryPoint, args)
	if err != nil {
		return 1, err
	}
	return b.Invoke(ctx, ec)
}

// buildEnv composes the container environment: host variables matching the
// allow-list prefixes, then the resolved configuration's own variables
// (which override inherited ones of the same name), then the identity
// variables. The result is sorted by name so assembled invocations are
// deterministic.
func (b *Builder) buildEnv(cfg *config.EffectiveConfig) ([]container.EnvVar, error) {
	merged := make(map[string]string)

	for _, kv := range b.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !forwarded(name) {
			continue
		}
		merged[name] = value
	}

	for name, value := range configEnv(cfg) {
		if value != "" {
			merged[name] = value
		}
	}

	merged[envUserID] = strconv.Itoa(b.uid())

	gids, err := b.groups()
	if err != nil {
		return nil, fmt.Errorf("resolving host group ids: %w", err)
	}
	ids := make([]string, len(gids))
	for i, gid := range gids {
		ids[i] = strconv.Itoa(gid)
	}
	merged[envGroupIDs] = strings.Join(ids, " ")

	env := make([]container.EnvVar, 0, len(merged))
	for name, value := range merged {
		env = append(env, container.EnvVar{Name: name, Value: value})
	}
	sort.Slice(env, func(i, j int) bool { return env[i].Name < env[j].Name })

	return env, nil
}

// configEnv maps the resolved configuration onto the KN_* variables the
// provisioner container reads.
func configEnv(cfg *config.EffectiveConfig) map[string]string {
	return map[string]string{
		"KN_REPO":               cfg.Repository,
		"KN_BRANCH":             cfg.Branch,
		"KN_PLUGIN_REPO":        cfg.PluginRepo,
		"KN_PLUGIN_REPO_BRANCH": cfg.PluginRepoBranch,
		"KN_PLUGIN_NAME":        cfg.PluginName,
		"KN_PROVISIONER_IMAGE":  cfg.ProvisionerImage,
	}
}

// forwarded reports whether an environment variable name matches the
// allow-list.
func forwarded(name string) bool {
	for _, prefix := range ForwardPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
