// SPDX-License-Identifier: MPL-2.0

// Package container shells out to a container runtime CLI (docker or
// podman) to launch the provisioner container. Argument assembly is kept
// separate from execution so invocations can be inspected in tests without
// a live runtime.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/kubenow/kn/pkg/types"
)

var (
	// ErrEngineNotFound is the sentinel error wrapped by EngineNotFoundError.
	ErrEngineNotFound = errors.New("container engine not found")

	// ErrInvalidRunOptions is the sentinel error wrapped by InvalidRunOptionsError.
	ErrInvalidRunOptions = errors.New("invalid run options")
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Option configures an Engine.
	Option func(*Engine)

	// Engine invokes a container runtime CLI. The same argument grammar is
	// shared by docker and podman for the subset kn uses (run, pull).
	Engine struct {
		name        string // runtime name, used in error messages
		binaryPath  string // resolved via exec.LookPath at construction
		execCommand ExecCommandFunc
	}

	// EngineNotFoundError is returned when the runtime binary is not on PATH.
	EngineNotFoundError struct {
		Name string
	}

	// InvalidRunOptionsError is returned when RunOptions misses a mandatory
	// field.
	InvalidRunOptionsError struct {
		Reason string
	}

	// EnvVar is a single NAME=VALUE pair forwarded into the container.
	// Pairs are kept as an ordered slice so assembled invocations are
	// deterministic.
	EnvVar struct {
		Name  string
		Value string
	}

	// VolumeMount is a bind mount of a host directory into the container.
	VolumeMount struct {
		HostPath      string
		ContainerPath string
		// Relabel requests an SELinux relabel (":Z") so the mount stays
		// usable under restrictive security contexts.
		Relabel bool
	}

	// RunOptions describes one provisioner container run.
	RunOptions struct {
		Image       string
		WorkDir     string // in-container working directory
		Remove      bool   // remove the container after exit
		Interactive bool   // keep stdin open
		TTY         bool   // allocate a pseudo-terminal
		Env         []EnvVar
		Volumes     []VolumeMount
		Command     []string // entry point plus positional arguments

		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}
)

// Error implements the error interface.
func (e *EngineNotFoundError) Error() string {
	return fmt.Sprintf("container engine %q not found on PATH", e.Name)
}

// Unwrap returns ErrEngineNotFound so callers can use errors.Is for programmatic detection.
func (e *EngineNotFoundError) Unwrap() error { return ErrEngineNotFound }

// Error implements the error interface.
func (e *InvalidRunOptionsError) Error() string {
	return fmt.Sprintf("invalid run options: %s", e.Reason)
}

// Unwrap returns ErrInvalidRunOptions so callers can use errors.Is for programmatic detection.
func (e *InvalidRunOptionsError) Unwrap() error { return ErrInvalidRunOptions }

// String returns the mount in the "host:container[:Z]" form the runtime CLI
// expects for -v.
func (v VolumeMount) String() string {
	s := v.HostPath + ":" + v.ContainerPath
	if v.Relabel {
		s += ":Z"
	}
	return s
}

// String returns the NAME=VALUE form the runtime CLI expects for -e.
func (e EnvVar) String() string { return e.Name + "=" + e.Value }

// Validate returns an error if a mandatory RunOptions field is missing.
func (o RunOptions) Validate() error {
	if strings.TrimSpace(o.Image) == "" {
		return &InvalidRunOptionsError{Reason: "image reference must be non-empty"}
	}
	if len(o.Command) == 0 {
		return &InvalidRunOptionsError{Reason: "command must name an entry point"}
	}
	for _, v := range o.Volumes {
		if strings.TrimSpace(v.HostPath) == "" || strings.TrimSpace(v.ContainerPath) == "" {
			return &InvalidRunOptionsError{Reason: fmt.Sprintf("volume mount %q has an empty path", v)}
		}
	}
	return nil
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(e *Engine) {
		e.execCommand = fn
	}
}

// WithBinaryPath overrides PATH lookup of the runtime binary.
func WithBinaryPath(path string) Option {
	return func(e *Engine) {
		e.binaryPath = path
	}
}

// New creates an Engine for the named runtime CLI, resolving its binary via
// PATH lookup unless WithBinaryPath overrides it.
func New(name string, opts ...Option) *Engine {
	path, _ := exec.LookPath(name)
	e := &Engine{
		name:        name,
		binaryPath:  path,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the runtime name used in error messages.
func (e *Engine) Name() string { return e.name }

// BinaryPath returns the resolved path to the runtime binary, empty when the
// binary was not found.
func (e *Engine) BinaryPath() string { return e.binaryPath }

// RunArgs constructs arguments for a container run invocation.
//
// Generated command: <binary> run [options] <image> <command...>
func (e *Engine) RunArgs(opts RunOptions) []string {
	args := []string{"run"}

	if opts.Remove {
		args = append(args, "--rm")
	}
	if opts.Interactive {
		args = append(args, "-i")
	}
	if opts.TTY {
		args = append(args, "-t")
	}
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	for _, v := range opts.Volumes {
		args = append(args, "-v", v.String())
	}
	for _, ev := range opts.Env {
		args = append(args, "-e", ev.String())
	}

	args = append(args, opts.Image)
	args = append(args, opts.Command...)

	return args
}

// PullArgs constructs arguments for an image pull invocation.
func (e *Engine) PullArgs(image string) []string {
	return []string{"pull", image}
}

// Run launches the container described by opts and blocks until the
// contained process exits. A non-zero exit status of the container is
// reported through the returned ExitCode, not as an error; the error return
// is reserved for infrastructure failures (runtime binary missing, exec
// failure).
func (e *Engine) Run(ctx context.Context, opts RunOptions) (types.ExitCode, error) {
	if err := opts.Validate(); err != nil {
		return 1, err
	}
	if e.binaryPath == "" {
		return 1, &EngineNotFoundError{Name: e.name}
	}

	cmd := e.execCommand(ctx, e.binaryPath, e.RunArgs(opts)...)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return types.ExitCode(exitErr.ExitCode()), nil
		}
		return 1, fmt.Errorf("running %s: %w", e.name, err)
	}

	return 0, nil
}

// Pull pre-fetches an image, streaming the runtime's progress output to the
// given writers.
func (e *Engine) Pull(ctx context.Context, image string, stdout, stderr io.Writer) error {
	if e.binaryPath == "" {
		return &EngineNotFoundError{Name: e.name}
	}

	cmd := e.execCommand(ctx, e.binaryPath, e.PullArgs(image)...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pulling %s with %s: %w", image, e.name, err)
	}
	return nil
}
