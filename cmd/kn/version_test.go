// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersion_PrintsBranchAndImage(t *testing.T) {
	setTestConfig(t)
	cfg.Branch = "v1.2.3"
	cfg.ProvisionerImage = "kubenow/provisioners:v1.2.3"

	cmd := newVersionCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 output lines, got %d: %q", len(lines), out.String())
	}

	// The first line is the marker the self-updater checks on downloaded
	// binaries.
	if lines[0] != "kn version v1.2.3" {
		t.Errorf("expected first line %q, got %q", "kn version v1.2.3", lines[0])
	}
	if lines[1] != "provisioner image: kubenow/provisioners:v1.2.3" {
		t.Errorf("expected second line %q, got %q", "provisioner image: kubenow/provisioners:v1.2.3", lines[1])
	}
}
