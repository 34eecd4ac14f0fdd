// SPDX-License-Identifier: MPL-2.0

// Package preset loads named configuration bundles. A preset is a TOML file
// holding any subset of the effective configuration fields; the values it
// carries are applied before explicit command-line flags, so a later flag
// still wins over a preset.
package preset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/kubenow/kn/internal/config"
)

// envDir overrides the preset directory, primarily for tests and
// non-standard installations.
const envDir = "KN_PRESET_DIR"

// ErrNotFound is the sentinel error wrapped by NotFoundError.
var ErrNotFound = errors.New("preset not found")

type (
	// NotFoundError is returned when a named preset has no file in the
	// preset directory.
	NotFoundError struct {
		Name string
		Dir  string
	}

	// MalformedError is returned when a preset file exists but cannot be
	// parsed.
	MalformedError struct {
		Path string
		Err  error
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("preset %q not found in %s", e.Name, e.Dir)
}

// Unwrap returns ErrNotFound so callers can use errors.Is for programmatic detection.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Error implements the error interface.
func (e *MalformedError) Error() string {
	return fmt.Sprintf("preset file %s: %v", e.Path, e.Err)
}

// Unwrap returns the parse error.
func (e *MalformedError) Unwrap() error { return e.Err }

// Dir returns the directory searched for preset files: $KN_PRESET_DIR when
// set, otherwise ~/.config/kn/presets.
func Dir() (string, error) {
	if dir := os.Getenv(envDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving preset directory: %w", err)
	}
	return filepath.Join(home, ".config", "kn", "presets"), nil
}

// Load reads the preset named name from dir ("<name>.toml") and returns the
// configuration overlay it carries.
func Load(dir, name string) (config.Overlay, error) {
	path := filepath.Join(dir, name+".toml")

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Overlay{}, &NotFoundError{Name: name, Dir: dir}
	}
	if err != nil {
		return config.Overlay{}, fmt.Errorf("reading preset %q: %w", name, err)
	}

	var overlay config.Overlay
	if err := toml.Unmarshal(data, &overlay); err != nil {
		return config.Overlay{}, &MalformedError{Path: path, Err: err}
	}

	return overlay, nil
}
