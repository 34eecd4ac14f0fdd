// SPDX-License-Identifier: MPL-2.0

// Package selfupdate replaces the running kn executable with a build
// published for a release ref. Downloads land in a temporary file next to
// the target binary, are sanity-checked by executing them, and are swapped
// in with an atomic rename so the original binary survives any failure.
package selfupdate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// maxBinaryBytes is the upper bound on downloaded binary size (500 MB).
// Prevents unbounded disk consumption from a malformed raw-content
// response.
const maxBinaryBytes = 500 << 20

// selfCheckMarker is the output prefix a healthy downloaded binary must
// print when invoked with "version".
const selfCheckMarker = "kn version"

var (
	//nolint:gochecknoglobals // Test seam for os.Executable().
	osExecutable = os.Executable

	//nolint:gochecknoglobals // Test seam for filepath.EvalSymlinks().
	evalSymlinks = filepath.EvalSymlinks
)

type (
	// ExecCommandFunc abstracts exec.CommandContext for testing the
	// downloaded-binary self-check.
	ExecCommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

	// VerificationError is returned when the downloaded binary fails the
	// self-check. The running executable is left untouched.
	VerificationError struct {
		Ref    string
		Output string
		Err    error
	}

	// ReplacementError is returned when swapping the verified binary into
	// place fails.
	ReplacementError struct {
		Path string
		Err  error
	}

	// UpdaterOption configures an Updater during construction.
	UpdaterOption func(*Updater)

	// Updater composes ref resolution, download, self-check, and atomic
	// replacement into an end-to-end upgrade flow. It is the primary
	// facade for the selfupdate package.
	Updater struct {
		client      *Client
		execCommand ExecCommandFunc
	}
)

// Error implements the error interface.
func (e *VerificationError) Error() string {
	return fmt.Sprintf("downloaded binary for %q failed self-check: %v", e.Ref, e.Err)
}

// Unwrap returns the underlying cause.
func (e *VerificationError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *ReplacementError) Error() string {
	return fmt.Sprintf("replacing %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ReplacementError) Unwrap() error { return e.Err }

// WithClient overrides the default release Client used by the Updater.
func WithClient(c *Client) UpdaterOption {
	return func(u *Updater) {
		u.client = c
	}
}

// WithExecCommand overrides the command constructor used for the
// downloaded-binary self-check.
func WithExecCommand(f ExecCommandFunc) UpdaterOption {
	return func(u *Updater) {
		u.execCommand = f
	}
}

// NewUpdater creates an Updater. If no WithClient option is provided, a
// default Client with the production endpoints is created.
func NewUpdater(opts ...UpdaterOption) *Updater {
	u := &Updater{
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.client == nil {
		u.client = NewClient()
	}
	return u
}

// Resolve maps a requested version token to the concrete ref an upgrade
// would install, without downloading anything.
func (u *Updater) Resolve(ctx context.Context, token string) (string, error) {
	return u.client.ResolveRef(ctx, token)
}

// Apply resolves token to a ref, downloads the build published for it, and
// replaces the running executable. The replacement uses os.Rename, which
// requires the temp file to reside on the same filesystem as the target —
// the download is written to the directory of the running binary. On any
// failure the original executable is left in place.
func (u *Updater) Apply(ctx context.Context, token string) (string, error) {
	execPath, err := resolveExecPath()
	if err != nil {
		return "", fmt.Errorf("resolving executable path: %w", err)
	}

	ref, err := u.client.ResolveRef(ctx, token)
	if err != nil {
		return "", err
	}

	targetDir := filepath.Dir(execPath)

	tempPath, err := u.download(ctx, ref, targetDir)
	if err != nil {
		return "", err
	}

	// Track whether the rename succeeded so the deferred cleanup knows
	// whether to remove the temp binary.
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tempPath)
		}
	}()

	if err := u.selfCheck(ctx, ref, tempPath); err != nil {
		return "", err
	}

	// Preserve the original binary's file permissions.
	info, err := os.Stat(execPath)
	if err != nil {
		return "", fmt.Errorf("reading original binary permissions: %w", err)
	}

	if err := os.Chmod(tempPath, info.Mode()); err != nil {
		return "", fmt.Errorf("setting binary permissions: %w", err)
	}

	// Atomic replacement via rename. This requires the temp file to be on
	// the same filesystem as the target, which is guaranteed because both
	// reside in targetDir.
	if err := os.Rename(tempPath, execPath); err != nil {
		return "", &ReplacementError{Path: execPath, Err: err}
	}
	renamed = true

	return ref, nil
}

// download fetches the build for ref into a temporary file in dir and
// marks it executable so the self-check can run it. The caller is
// responsible for removing the file.
func (u *Updater) download(ctx context.Context, ref, dir string) (_ string, err error) {
	body, err := u.client.FetchRef(ctx, ref)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	tmp, err := os.CreateTemp(dir, "kn-upgrade-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(tmp, io.LimitReader(body, maxBinaryBytes)); err != nil {
		// Best-effort removal of partially written temp file.
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("writing to temp file: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("marking download executable: %w", err)
	}

	return tmp.Name(), nil
}

// selfCheck runs the downloaded binary's version command and verifies its
// output starts with the expected marker. A raw-content host serving an
// error page or a truncated download fails here rather than after the
// swap.
func (u *Updater) selfCheck(ctx context.Context, ref, path string) error {
	var out bytes.Buffer

	cmd := u.execCommand(ctx, path, "version")
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return &VerificationError{Ref: ref, Output: out.String(), Err: err}
	}

	if !strings.HasPrefix(out.String(), selfCheckMarker) {
		return &VerificationError{
			Ref:    ref,
			Output: out.String(),
			Err:    errors.New("version output missing expected prefix"),
		}
	}

	return nil
}

// resolveExecPath returns the absolute, symlink-resolved path to the
// currently running binary.
func resolveExecPath() (string, error) {
	p, err := osExecutable()
	if err != nil {
		return "", fmt.Errorf("determining executable path: %w", err)
	}

	resolved, err := evalSymlinks(p)
	if err != nil {
		return "", fmt.Errorf("resolving symlinks for %s: %w", p, err)
	}

	return resolved, nil
}
