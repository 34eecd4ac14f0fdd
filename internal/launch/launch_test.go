// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"context"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/kubenow/kn/internal/config"
	"github.com/kubenow/kn/internal/container"
	"github.com/kubenow/kn/pkg/types"
)

// recordingRunner captures the RunOptions it is invoked with and returns a
// fixed exit code.
type recordingRunner struct {
	opts container.RunOptions
	code types.ExitCode
}

func (r *recordingRunner) Run(_ context.Context, opts container.RunOptions) (types.ExitCode, error) {
	r.opts = opts
	return r.code, nil
}

func testConfig() *config.EffectiveConfig {
	return &config.EffectiveConfig{
		Repository:       "https://github.com/kubenow/KubeNow",
		Branch:           "master",
		ProvisionerImage: "kubenow/provisioners:master",
		Engine:           config.ContainerEngineDocker,
	}
}

func testBuilder(r Runner) *Builder {
	return NewBuilder(r,
		WithEnviron(func() []string {
			return []string{
				"AWS_ACCESS_KEY_ID=AKIA123",
				"OS_AUTH_URL=https://keystone.example.com:5000",
				"TF_VAR_count=3",
				"HOME=/home/user",
				"PATH=/usr/bin",
				"SECRET_TOKEN=nope",
			}
		}),
		WithIdentity(
			func() int { return 1000 },
			func() ([]int, error) { return []int{1000, 999, 10}, nil },
		),
		WithTTY(true),
	)
}

// envMap converts the ordered env slice to a map for lookups.
func envMap(env []container.EnvVar) map[string]string {
	m := make(map[string]string, len(env))
	for _, ev := range env {
		m[ev.Name] = ev.Value
	}
	return m
}

func TestContextEnvAllowList(t *testing.T) {
	b := testBuilder(&recordingRunner{})

	ec, err := b.Context(testConfig(), ".", "kn-apply", nil)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}

	env := envMap(ec.Env)

	// Allow-listed families are forwarded.
	if env["AWS_ACCESS_KEY_ID"] != "AKIA123" {
		t.Errorf("AWS_ACCESS_KEY_ID = %q, want forwarded", env["AWS_ACCESS_KEY_ID"])
	}
	if env["OS_AUTH_URL"] == "" || env["TF_VAR_count"] != "3" {
		t.Error("cloud and tool families must be forwarded")
	}

	// Everything else is invisible inside the container.
	for _, name := range []string{"HOME", "PATH", "SECRET_TOKEN"} {
		if _, ok := env[name]; ok {
			t.Errorf("%s must not be forwarded", name)
		}
	}
}

func TestContextConfigAndIdentityEnv(t *testing.T) {
	b := testBuilder(&recordingRunner{})

	ec, err := b.Context(testConfig(), ".", "kn-apply", nil)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}

	env := envMap(ec.Env)

	if env["KN_BRANCH"] != "master" {
		t.Errorf("KN_BRANCH = %q, want resolved branch", env["KN_BRANCH"])
	}
	if env["KN_PROVISIONER_IMAGE"] != "kubenow/provisioners:master" {
		t.Errorf("KN_PROVISIONER_IMAGE = %q, want resolved image", env["KN_PROVISIONER_IMAGE"])
	}
	if _, ok := env["KN_PLUGIN_REPO"]; ok {
		t.Error("empty config fields must not be injected")
	}
	if env["LOCAL_USER_ID"] != "1000" {
		t.Errorf("LOCAL_USER_ID = %q, want %q", env["LOCAL_USER_ID"], "1000")
	}
	if env["LOCAL_GROUP_IDS"] != "1000 999 10" {
		t.Errorf("LOCAL_GROUP_IDS = %q, want space-joined list", env["LOCAL_GROUP_IDS"])
	}
}

func TestContextEnvIsSorted(t *testing.T) {
	b := testBuilder(&recordingRunner{})

	ec, err := b.Context(testConfig(), ".", "kn-apply", nil)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}

	if !sort.SliceIsSorted(ec.Env, func(i, j int) bool { return ec.Env[i].Name < ec.Env[j].Name }) {
		t.Errorf("env not sorted by name: %v", ec.Env)
	}
}

func TestContextResolvesAbsoluteHostDir(t *testing.T) {
	b := testBuilder(&recordingRunner{})

	ec, err := b.Context(testConfig(), ".", "bash", nil)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}

	if !filepath.IsAbs(ec.HostDir) {
		t.Errorf("HostDir = %q, want absolute path", ec.HostDir)
	}
}

func TestInvokeRunOptions(t *testing.T) {
	r := &recordingRunner{code: 7}
	b := testBuilder(r)

	code, err := b.Run(context.Background(), testConfig(), "/work/proj", "kn-scale", []string{"edge", "3"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 7 {
		t.Errorf("exit code = %d, want runner's code propagated", code)
	}

	opts := r.opts
	if opts.Image != "kubenow/provisioners:master" {
		t.Errorf("Image = %q, want configured image", opts.Image)
	}
	if !opts.Remove || !opts.Interactive || !opts.TTY {
		t.Errorf("Remove/Interactive/TTY = %v/%v/%v, want all true", opts.Remove, opts.Interactive, opts.TTY)
	}
	if opts.WorkDir != MountPoint {
		t.Errorf("WorkDir = %q, want %q", opts.WorkDir, MountPoint)
	}

	wantVolumes := []container.VolumeMount{
		{HostPath: "/work/proj", ContainerPath: MountPoint, Relabel: true},
	}
	if !reflect.DeepEqual(opts.Volumes, wantVolumes) {
		t.Errorf("Volumes = %v, want %v", opts.Volumes, wantVolumes)
	}

	wantCommand := []string{"kn-scale", "edge", "3"}
	if !reflect.DeepEqual(opts.Command, wantCommand) {
		t.Errorf("Command = %v, want entry point plus args", opts.Command)
	}
}
