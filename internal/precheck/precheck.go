// SPDX-License-Identifier: MPL-2.0

// Package precheck verifies that a directory carries the artifacts a
// deployed (or deployable) project needs before state-changing commands run
// against it.
package precheck

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// RequiredFiles are the project artifacts checked, in check order: the SSH
// key pair used to reach cluster hosts, the project configuration, and the
// Ansible configuration.
var RequiredFiles = []string{
	"ssh_key",
	"ssh_key.pub",
	"terraform.tfvars",
	"ansible.cfg",
}

// ErrMissingArtifact is the sentinel error wrapped by MissingArtifactError.
var ErrMissingArtifact = errors.New("missing project file")

// MissingArtifactError is returned for the first required artifact not
// found in the project directory.
type MissingArtifactError struct {
	Name string
	Dir  string
}

// Error implements the error interface.
func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("required project file %q not found in %s; is this a kn project directory?", e.Name, e.Dir)
}

// Unwrap returns ErrMissingArtifact so callers can use errors.Is for programmatic detection.
func (e *MissingArtifactError) Unwrap() error { return ErrMissingArtifact }

// Verify fails fast at the first required artifact missing from dir. No
// partial recovery is attempted; the caller aborts the command.
func Verify(dir string) error {
	for _, name := range RequiredFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return &MissingArtifactError{Name: name, Dir: dir}
			}
			return fmt.Errorf("checking project file %q: %w", name, err)
		}
	}
	return nil
}
