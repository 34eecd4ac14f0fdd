// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/kubenow/kn/internal/config"
	"github.com/kubenow/kn/internal/precheck"
	"github.com/kubenow/kn/pkg/types"
)

// recordedRun captures one containerRun invocation made through the seam.
type recordedRun struct {
	hostDir    string
	entryPoint string
	args       []string
}

// overrideContainerRun replaces the containerRun seam with a recorder that
// returns the given exit code and error. Restoration is registered
// automatically.
func overrideContainerRun(t *testing.T, code types.ExitCode, err error) *[]recordedRun {
	t.Helper()

	var calls []recordedRun
	orig := containerRun
	t.Cleanup(func() { containerRun = orig })

	containerRun = func(_ context.Context, _ *config.EffectiveConfig, hostDir, entryPoint string, args []string) (types.ExitCode, error) {
		calls = append(calls, recordedRun{hostDir: hostDir, entryPoint: entryPoint, args: args})
		return code, err
	}
	return &calls
}

// setTestConfig installs a fixed effective configuration for the duration of
// the test.
func setTestConfig(t *testing.T) {
	t.Helper()

	orig := cfg
	t.Cleanup(func() { cfg = orig })

	cfg = &config.EffectiveConfig{
		Repository:       config.DefaultRepository,
		Branch:           config.DefaultBranch,
		ProvisionerImage: config.DefaultProvisionerImage,
		Engine:           config.ContainerEngineDocker,
	}
}

// populateProject writes every artifact the precondition validator requires
// into dir.
func populateProject(t *testing.T, dir string) {
	t.Helper()

	for _, name := range precheck.RequiredFiles {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

// findSpec returns the routing-table entry for the named subcommand.
func findSpec(t *testing.T, use string) passthroughSpec {
	t.Helper()

	for _, s := range passthroughSpecs {
		if s.use == use {
			return s
		}
	}
	t.Fatalf("no passthrough spec for %q", use)
	return passthroughSpec{}
}

// --- Tests ---

func TestPassthroughSpecs_RoutingTable(t *testing.T) {
	tests := []struct {
		use        string
		entryPoint string
		precheck   bool
	}{
		{use: "apply", entryPoint: "kn-apply", precheck: true},
		{use: "destroy", entryPoint: "kn-destroy", precheck: true},
		{use: "provision", entryPoint: "kn-provision", precheck: true},
		{use: "scale", entryPoint: "kn-scale", precheck: true},
		{use: "ssh", entryPoint: "kn-ssh", precheck: true},
		{use: "kubetoken", entryPoint: "kn-kubetoken", precheck: false},
		{use: "kubectl", entryPoint: "kubectl", precheck: true},
		{use: "helm", entryPoint: "helm", precheck: true},
		{use: "terraform", entryPoint: "terraform", precheck: true},
		{use: "ansible", entryPoint: "ansible", precheck: true},
		{use: "ansible-playbook", entryPoint: "ansible-playbook", precheck: true},
		{use: "gcloud", entryPoint: "gcloud", precheck: false},
		{use: "openstack", entryPoint: "openstack", precheck: false},
		{use: "az", entryPoint: "az", precheck: false},
		{use: "bash", entryPoint: "bash", precheck: false},
		{use: "git", entryPoint: "git", precheck: false},
	}

	if len(tests) != len(passthroughSpecs) {
		t.Fatalf("routing table has %d entries, expected %d", len(passthroughSpecs), len(tests))
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			spec := findSpec(t, tt.use)
			if got := spec.entryPoint(); got != tt.entryPoint {
				t.Errorf("expected entry point %q, got %q", tt.entryPoint, got)
			}
			if spec.precheck != tt.precheck {
				t.Errorf("expected precheck %v, got %v", tt.precheck, spec.precheck)
			}
		})
	}
}

func TestPassthrough_ForwardsArgsOpaquely(t *testing.T) {
	setTestConfig(t)
	calls := overrideContainerRun(t, 0, nil)

	dir := t.TempDir()
	populateProject(t, dir)
	t.Chdir(dir)

	cmd := newPassthroughCommand(findSpec(t, "kubectl"))
	cmd.SetContext(context.Background())

	args := []string{"get", "pods", "-o", "wide"}
	if err := cmd.RunE(cmd, args); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*calls) != 1 {
		t.Fatalf("expected 1 container run, got %d", len(*calls))
	}
	call := (*calls)[0]
	if call.entryPoint != "kubectl" {
		t.Errorf("expected entry point %q, got %q", "kubectl", call.entryPoint)
	}
	if call.hostDir != "." {
		t.Errorf("expected host dir %q, got %q", ".", call.hostDir)
	}
	if len(call.args) != 4 || call.args[2] != "-o" {
		t.Errorf("expected opaque args %v, got %v", args, call.args)
	}
}

func TestPassthrough_PrecheckBlocksContainerRun(t *testing.T) {
	setTestConfig(t)
	calls := overrideContainerRun(t, 0, nil)

	// Empty directory: every required artifact is missing.
	t.Chdir(t.TempDir())

	cmd := newPassthroughCommand(findSpec(t, "apply"))
	cmd.SetContext(context.Background())
	cmd.SetErr(io.Discard)

	err := cmd.RunE(cmd, nil)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != 1 {
		t.Errorf("expected exit code 1, got %d", exitErr.Code)
	}
	if !errors.Is(err, precheck.ErrMissingArtifact) {
		t.Errorf("expected ErrMissingArtifact in chain, got %v", err)
	}
	if len(*calls) != 0 {
		t.Errorf("expected no container run before the precondition check, got %d", len(*calls))
	}
}

func TestPassthrough_NoPrecheckForCloudCLIs(t *testing.T) {
	setTestConfig(t)
	calls := overrideContainerRun(t, 0, nil)

	// Empty directory: gcloud must still run.
	t.Chdir(t.TempDir())

	cmd := newPassthroughCommand(findSpec(t, "gcloud"))
	cmd.SetContext(context.Background())

	if err := cmd.RunE(cmd, []string{"auth", "list"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected 1 container run, got %d", len(*calls))
	}
	if (*calls)[0].entryPoint != "gcloud" {
		t.Errorf("expected entry point %q, got %q", "gcloud", (*calls)[0].entryPoint)
	}
}

func TestPassthrough_PropagatesContainerExitCode(t *testing.T) {
	setTestConfig(t)
	overrideContainerRun(t, 42, nil)

	t.Chdir(t.TempDir())

	cmd := newPassthroughCommand(findSpec(t, "bash"))
	cmd.SetContext(context.Background())

	err := cmd.RunE(cmd, []string{"-c", "exit 42"})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != 42 {
		t.Errorf("expected exit code 42, got %d", exitErr.Code)
	}
}

func TestPassthrough_InfrastructureFailureExitsOne(t *testing.T) {
	setTestConfig(t)
	overrideContainerRun(t, 1, errors.New("docker not found"))

	t.Chdir(t.TempDir())

	cmd := newPassthroughCommand(findSpec(t, "git"))
	cmd.SetContext(context.Background())

	err := cmd.RunE(cmd, []string{"status"})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != 1 {
		t.Errorf("expected exit code 1, got %d", exitErr.Code)
	}
	if exitErr.Err == nil {
		t.Error("expected the infrastructure error to be wrapped")
	}
}
